package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var (
	splitMode    string
	splitContext string
	splitPolicy  string
	splitImport  bool
	splitStrict  bool
	splitJSON    bool
)

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Commit a batch of proposed tasks",
	Long: `Read a batch of proposed tasks from a YAML or JSON file ("-" for stdin)
and commit it under an update mode.

The file is either a list of tasks or a document of the form:

  update_mode: selective
  global_context: shared analysis for every task
  tasks:
    - name: Build API
      description: ...
      implementation_guide: ...
      dependencies: [Design schema]

Modes:
  append         keep every existing task and add the batch
  overwrite      drop unfinished tasks, keep COMPLETED ones, add the batch
  selective      update tasks matched by name, create the rest
  clearAllTasks  back up and empty the store, then add the batch

Flags override the values in the file. The batch commits fully or not at all.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		req, err := readSplitRequest(args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mode") || req.Mode == "" {
			req.Mode = models.UpdateMode(splitMode)
		}
		if splitContext != "" {
			req.GlobalContext = splitContext
		}
		if splitPolicy != "" {
			req.Policy = models.ResolutionPolicy(strings.ToLower(splitPolicy))
		}
		req.Import = req.Import || splitImport
		req.Strict = req.Strict || splitStrict

		res, err := Engine.Split(req)
		if err != nil {
			return fmt.Errorf("splitting tasks: %w", err)
		}

		if splitJSON {
			return printJSON(res)
		}

		op := res.Operation
		fmt.Printf("Split committed (%s): %d created, %d updated, %d removed\n",
			op.Mode, op.Added, op.Updated, op.Removed)
		fmt.Printf("  Tasks: %d -> %d\n", op.TasksBefore, op.TasksAfter)
		if res.BackupID != "" {
			fmt.Printf("  Backup: %s\n", res.BackupID)
		}
		for _, id := range res.CreatedIDs {
			if t, err := Engine.GetTask(id); err == nil {
				fmt.Printf("  + %s  %s\n", shortID(id), t.Name)
			}
		}
		for _, id := range res.UpdatedIDs {
			if t, err := Engine.GetTask(id); err == nil {
				fmt.Printf("  ~ %s  %s\n", shortID(id), t.Name)
			}
		}
		printWarnings(res.Warnings)
		return nil
	},
}

// readSplitRequest loads a batch file. A top-level sequence is taken as the
// task list; a mapping is decoded as a full request.
func readSplitRequest(path string) (models.SplitRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = afero.ReadFile(FS, path)
	}
	if err != nil {
		return models.SplitRequest{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseSplitRequest(data)
}

func parseSplitRequest(data []byte) (models.SplitRequest, error) {
	var req models.SplitRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return req, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return req, fmt.Errorf("parsing batch file: %w", err)
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&req.Tasks); err != nil {
			return req, fmt.Errorf("parsing task list: %w", err)
		}
		return req, nil
	}
	if err := node.Decode(&req); err != nil {
		return req, fmt.Errorf("parsing split request: %w", err)
	}
	return req, nil
}

func init() {
	splitCmd.Flags().StringVarP(&splitMode, "mode", "m", string(models.ModeAppend), "Update mode: append, overwrite, selective, clearAllTasks")
	splitCmd.Flags().StringVar(&splitContext, "context", "", "Global context attached to every task in the batch")
	splitCmd.Flags().StringVar(&splitPolicy, "policy", "", "Unresolved dependency policy: strict or skip")
	splitCmd.Flags().BoolVar(&splitImport, "import", false, "Treat the batch as a bulk import (defaults to the import policy)")
	splitCmd.Flags().BoolVar(&splitStrict, "strict", false, "Turn granularity warnings into errors")
	splitCmd.Flags().BoolVar(&splitJSON, "json", false, "Output the split result as JSON")
	rootCmd.AddCommand(splitCmd)
}
