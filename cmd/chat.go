package cmd

import (
	"fmt"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/tui"
	"github.com/spf13/cobra"
)

var (
	chatFile    string
	chatGeneral bool
	chatStyle   string
	chatNoCache bool
)

// chatCmd represents the interactive chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open the full-screen chat.

Type the path of a document or paste its text to have it analyzed, or press
Ctrl+G for general help. Once the summary is shown you can ask questions.

Commands inside the chat:
  /switch <file>   analyze another document in the same conversation
  /save            keep the conversation in the local archive
  /reset           start over
  /quit            leave`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if chatFile != "" {
			if err := checkSupported(chatFile); err != nil {
				return err
			}
		}

		archive, err := openArchive()
		if err != nil {
			internal.LogWarn("chat without archive: %v", err)
			archive = nil
		}
		var saver tui.Archive
		if archive != nil {
			defer archive.Close()
			saver = archive
		}

		err = tui.Run(cmd.Context(), newClient(), tui.Options{
			PollInterval: cfg.PollInterval,
			Extractor:    newExtractor(chatNoCache),
			Archive:      saver,
			Style:        chatStyle,
			File:         chatFile,
			General:      chatGeneral,
		})
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "Analyze this document right away")
	chatCmd.Flags().BoolVarP(&chatGeneral, "general", "g", false, "Start in general help mode")
	chatCmd.Flags().StringVar(&chatStyle, "style", "", "Markdown style (dark, light, notty); detected by default")
	chatCmd.Flags().BoolVar(&chatNoCache, "no-cache", false, "Do not use cached extraction results")
	chatCmd.MarkFlagsMutuallyExclusive("file", "general")
}
