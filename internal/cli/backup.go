package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	backupJSON bool
	clearYes   bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List and restore task set snapshots",
	Long: `Snapshots are taken automatically before overwrite and clearAllTasks
splits, before clear, and before a restore replaces the live set.`,
}

var backupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List backups, oldest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		backups, err := Engine.Backups()
		if err != nil {
			return fmt.Errorf("listing backups: %w", err)
		}
		if backupJSON {
			return printJSON(backups)
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		fmt.Printf("  %-26s %-20s %-14s %s\n", "ID", "CREATED", "REASON", "TASKS")
		for _, b := range backups {
			fmt.Printf("  %-26s %-20s %-14s %d\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"), b.Reason, b.TaskCount)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Replace the task set with a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		res, err := Engine.RestoreBackup(args[0])
		if err != nil {
			return fmt.Errorf("restoring backup: %w", err)
		}
		fmt.Printf("Restored %d tasks from %s (%s)\n", res.Restored, res.Backup.ID, res.Backup.Reason)
		if res.SafetyBackup != nil {
			fmt.Printf("  Previous set saved as %s\n", res.SafetyBackup.ID)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Back up and remove every task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		if !clearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}
		b, err := Engine.ClearAll()
		if err != nil {
			return fmt.Errorf("clearing tasks: %w", err)
		}
		fmt.Printf("Cleared %d tasks. Backup: %s\n", b.TaskCount, b.ID)
		return nil
	},
}

func init() {
	backupListCmd.Flags().BoolVar(&backupJSON, "json", false, "Output backups as JSON")
	backupCmd.AddCommand(backupListCmd, backupRestoreCmd)
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Confirm removing every task")
	rootCmd.AddCommand(backupCmd, clearCmd)
}
