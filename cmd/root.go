package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/iksnae/leby/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	apiURL     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is loaded before any subcommand runs.
	cfg *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leby",
	Short: "Chat with an assistant about your legal documents",
	Long: `leby sends a document to the analysis service, shows you a plain-language
summary and lets you ask questions about it.

Documents can be PDF, text, Markdown or HTML files, or text you paste in.
Without a document, general help mode answers everyday legal questions.

Features:
  • Interactive chat with summaries and follow-up questions
  • One-shot analysis for scripts
  • Local archive of saved conversations
  • Export in multiple formats (JSONL, JSON, YAML, Markdown, HTML)

Quick Start:
  leby chat                         # Open the interactive chat
  leby chat --file lease.pdf        # Analyze a document right away
  leby analyze lease.pdf -q "Can I end it early?"
  leby list                         # List saved conversations`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)

		loaded, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if apiURL != "" {
			loaded.APIURL = apiURL
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		if err := internal.InitLogger(loaded.LogFile); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cfg = loaded
		internal.LogDebug("running %s against %s", cmd.CommandPath(), cfg.APIURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		internal.SyncLogger()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		internal.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.leby/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Base URL of the analysis service")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
