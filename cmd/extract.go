package cmd

import (
	"fmt"
	"unicode/utf8"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/chat"
	"github.com/spf13/cobra"
)

var (
	extractNoCache    bool
	extractClearCache bool
)

// extractCmd prints the text that would be sent for analysis
var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the text extracted from a document",
	Long: `Extract the text of a PDF, text, Markdown or HTML file exactly as it would
be sent to the analysis service. Useful to check scanned PDFs, which carry
no text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := checkSupported(path); err != nil {
			return err
		}

		if extractClearCache {
			if err := internal.NewCacheManager(cfg.CacheDir).ClearCache(); err != nil {
				internal.LogWarn("Failed to clear cache: %v", err)
			} else {
				internal.PrintInfo(cmd.ErrOrStderr(), "Cache cleared")
			}
		}

		text, err := newExtractor(extractNoCache).Extract(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, text)
		if err := chat.ValidateText(text); err != nil {
			internal.PrintWarning(cmd.ErrOrStderr(), err.Error())
		} else {
			internal.LogDebug("%s: %d characters", path, utf8.RuneCountInString(text))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&extractNoCache, "no-cache", false, "Do not use cached extraction results")
	extractCmd.Flags().BoolVar(&extractClearCache, "clear-cache", false, "Clear the extraction cache first")
}
