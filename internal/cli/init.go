package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var (
	initBackend string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default .taskgraph.yaml",
	Long: `Write a .taskgraph.yaml with every setting at its default value into dir
(the data directory when omitted). taskgraph finds the nearest
.taskgraph.yaml above the working directory, so running init at a project
root scopes the task set to that project.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := BasePath
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			dir = "."
		}

		cfg := models.DefaultConfig()
		cfg.Storage.Backend = models.StorageBackend(initBackend)
		if cfg.Storage.Backend == models.BackendSQLite {
			cfg.Storage.Path = "tasks.db"
		}
		if err := core.NewConfigurationManager(dir).ValidateConfig(cfg); err != nil {
			return err
		}

		path := filepath.Join(dir, core.ConfigFileName+".yaml")
		exists, err := afero.Exists(FS, path)
		if err != nil {
			return fmt.Errorf("checking %s: %w", path, err)
		}
		if exists && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		if err := afero.WriteFile(FS, path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", string(models.BackendYAML), "Storage backend: yaml or sqlite")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
