package app

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LulfLoot/ThunderDockerman/internal/output"
)

var (
	restoreYes     bool
	pruneOlderThan time.Duration

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Manage world data backups",
		Long: `Create, list, restore and delete zip archives of the game server's data
directory (data_dir). Archives are written to backup_dir; files matching
*.old are skipped.`,
	}

	backupCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Archive the data directory",
		Args:  cobra.NoArgs,
		RunE:  runBackupCreate,
	}

	backupListCmd = &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE:  runBackupList,
	}

	backupRestoreCmd = &cobra.Command{
		Use:   "restore <backup>",
		Short: "Extract a backup over the data directory",
		Long: `Extract a backup over the data directory. Files in the archive overwrite
existing files; files not in the archive are left alone. Stop the game
server first.`,
		Args: cobra.ExactArgs(1),
		RunE: runBackupRestore,
	}

	backupDeleteCmd = &cobra.Command{
		Use:   "delete <backup>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackupDelete,
	}

	backupPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than --older-than",
		Args:  cobra.NoArgs,
		RunE:  runBackupPrune,
	}
)

func init() {
	backupRestoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip confirmation prompt")
	backupPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "minimum age of backups to delete")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupPruneCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		spinner := output.NewSpinner("Creating backup")
		spinner.SetWriter(cmd.OutOrStdout())
		spinner.Start()
		b, err := svc.backups.Create()
		if err != nil {
			spinner.Stop()
			return err
		}
		spinner.StopWithMessage(fmt.Sprintf("✓ Backup created: %s", b.Filename))
		return nil
	})
}

func runBackupList(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		backups, err := svc.backups.List()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderBackupTable(backups))
		return nil
	})
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	filename := args[0]

	return withServices(cmd, func(svc *services) error {
		out := cmd.OutOrStdout()
		if !restoreYes {
			fmt.Fprintf(out, "Restore %s over %s? Existing files will be overwritten. [y/N]: ", filename, svc.backups.DataDir())
			reader := bufio.NewReader(cmd.InOrStdin())
			response, _ := reader.ReadString('\n')
			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(out, "Restore cancelled")
				return nil
			}
		}

		if err := svc.backups.Restore(filename); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Restored %s\n", filename)
		return nil
	})
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		if err := svc.backups.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
		return nil
	})
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		removed, err := svc.backups.Prune(pruneOlderThan)
		if err != nil {
			return fmt.Errorf("failed to prune backups: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d backups older than %s\n", removed, pruneOlderThan)
		return nil
	})
}
