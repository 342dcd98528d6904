package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var (
	decomposeStrategy string
	decomposeMax      int
	decomposeOut      string
	decomposeMode     string
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose <task>",
	Short: "Generate subtask templates for a task",
	Long: `Generate a batch of subtask templates for an existing task. Nothing is
committed: the batch is printed (or written with --out) as a split file that
can be reviewed, edited and then passed to "taskgraph split".

Strategies: ` + strings.Join(strategyNames(), ", ") + `.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		d, err := Engine.Decompose(args[0], core.Strategy(decomposeStrategy), decomposeMax)
		if err != nil {
			return fmt.Errorf("decomposing task: %w", err)
		}

		req := models.SplitRequest{
			Mode:          models.UpdateMode(decomposeMode),
			Tasks:         d.Templates,
			GlobalContext: fmt.Sprintf("Decomposition of %q using %s.", d.Original.Name, d.Strategy),
		}
		data, err := yaml.Marshal(req)
		if err != nil {
			return fmt.Errorf("encoding templates: %w", err)
		}

		if decomposeOut == "" {
			fmt.Print(string(data))
			return nil
		}
		if err := afero.WriteFile(FS, decomposeOut, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", decomposeOut, err)
		}
		fmt.Printf("Wrote %d templates to %s\n", len(d.Templates), decomposeOut)
		return nil
	},
}

func strategyNames() []string {
	out := make([]string, len(core.Strategies))
	for i, s := range core.Strategies {
		out[i] = string(s)
	}
	return out
}

func init() {
	decomposeCmd.Flags().StringVarP(&decomposeStrategy, "strategy", "s", string(core.StrategyFunctionalModules), "Decomposition strategy")
	decomposeCmd.Flags().IntVar(&decomposeMax, "max", core.DefaultMaxSubtasks, "Maximum number of subtasks")
	decomposeCmd.Flags().StringVarP(&decomposeOut, "out", "o", "", "Write the split file here instead of stdout")
	decomposeCmd.Flags().StringVar(&decomposeMode, "mode", string(models.ModeAppend), "Update mode written into the split file")
	rootCmd.AddCommand(decomposeCmd)
}
