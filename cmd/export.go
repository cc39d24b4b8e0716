package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/export"
	"github.com/spf13/cobra"
)

var (
	format     string
	outputDir  string
	exportMode string
	sessionID  string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved conversations to files",
	Long: fmt.Sprintf(`Export saved conversations to one of: %s.

You can export all conversations, only those of one mode, or a single
conversation by ID. Use 'leby list' to see available IDs.`, strings.Join(export.Formats, ", ")),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer archive.Close()

		var sessions []*internal.Session
		if sessionID != "" {
			session, err := archive.Load(sessionID)
			if err != nil {
				return fmt.Errorf("%w (use 'leby list' to see available conversations)", err)
			}
			sessions = []*internal.Session{session}
		} else {
			sessions, err = archive.LoadAll()
			if err != nil {
				return fmt.Errorf("failed to load conversations: %w", err)
			}
		}

		if exportMode != "" {
			filtered := make([]*internal.Session, 0, len(sessions))
			for _, session := range sessions {
				if session.Mode == exportMode {
					filtered = append(filtered, session)
				}
			}
			sessions = filtered
		}

		if len(sessions) == 0 {
			internal.PrintWarning(cmd.OutOrStdout(), "Nothing to export")
			return nil
		}

		var written, failed int
		err = internal.ShowProgress(cmd.Context(), fmt.Sprintf("Exporting %d conversation(s) to %s", len(sessions), outputDir), func() error {
			for _, session := range sessions {
				path, err := export.WriteFile(exporter, session, outputDir)
				if err != nil {
					internal.LogError("export of %s failed: %v", session.ID, err)
					failed++
					continue
				}
				internal.LogDebug("wrote %s", path)
				written++
			}
			if written == 0 {
				return fmt.Errorf("no conversation could be exported")
			}
			return nil
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		internal.PrintSuccess(out, fmt.Sprintf("Export complete: %d conversation(s) exported to %s", written, outputDir))
		if failed > 0 {
			internal.PrintWarning(out, fmt.Sprintf("%d conversation(s) failed, see the log", failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format ("+strings.Join(export.Formats, ", ")+")")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportMode, "mode", "", "Only export conversations of this mode (document, general)")
	exportCmd.Flags().StringVar(&sessionID, "session-id", "", "Export a specific conversation by ID")
}
