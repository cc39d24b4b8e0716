package cmd

import (
	"fmt"

	"github.com/iksnae/leby/internal"
	"github.com/spf13/cobra"
)

// deleteCmd removes saved conversations from the archive
var deleteCmd = &cobra.Command{
	Use:     "delete <conversation-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete saved conversations",
	Long: `Delete conversations from the archive. IDs may be abbreviated to any
unique prefix, as shown by 'leby list'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer archive.Close()

		out := cmd.OutOrStdout()
		for _, prefix := range args {
			session, err := archive.Load(prefix)
			if err != nil {
				return err
			}
			if err := archive.Delete(session.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", shortID(session.ID), err)
			}
			internal.LogInfo("deleted conversation %s", session.ID)
			internal.PrintSuccess(out, fmt.Sprintf("Deleted conversation %s (%s)", shortID(session.ID), session.Label))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
