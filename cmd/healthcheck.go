package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/leby/internal"
	"github.com/spf13/cobra"
)

const pingTimeout = 5 * time.Second

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that leby can reach the service and its local files",
	Long: `Check the health of leby by verifying:
  • Configuration
  • Analysis service reachability
  • Conversation archive access
  • Extraction cache access

Use --verbose to print paths and counts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 leby Health Check"))
		fmt.Fprintln(out)

		failures := 0

		fmt.Fprintln(out, infoStyle.Render("Step 1: Configuration..."))
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if verbose {
			fmt.Fprintf(out, "   Service: %s\n", cfg.APIURL)
			fmt.Fprintf(out, "   Poll interval: %s\n", cfg.PollInterval)
			fmt.Fprintf(out, "   Log file: %s\n", cfg.LogFile)
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 2: Contacting the analysis service..."))
		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		err := newClient().Ping(ctx)
		cancel()
		if err != nil {
			failures++
			fmt.Fprintln(out, errorStyle.Render("❌ Service unreachable:"), err)
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Service reachable at "+cfg.APIURL))
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 3: Opening the conversation archive..."))
		if !checkArchive(out) {
			failures++
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 4: Checking the extraction cache..."))
		checkCache(out)
		fmt.Fprintln(out)

		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if failures > 0 {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ Health check failed (%d problem(s))", failures)))
			return fmt.Errorf("health check failed: %d problem(s)", failures)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	},
}

func checkArchive(out io.Writer) bool {
	archive, err := openArchive()
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Archive unavailable:"), err)
		return false
	}
	defer archive.Close()

	sessions, err := archive.List()
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Archive unreadable:"), err)
		return false
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Archive holds %d conversation(s)", len(sessions))))
	if verbose {
		fmt.Fprintf(out, "   Database: %s\n", cfg.ArchivePath)
	}
	return true
}

// checkCache only warns: chatting works without a cache.
func checkCache(out io.Writer) {
	cache := internal.NewCacheManager(cfg.CacheDir)
	if err := cache.EnsureCacheDir(); err != nil {
		fmt.Fprintln(out, warningStyle.Render("⚠️  Cache directory unavailable:"), err)
		return
	}
	entries := 0
	if index, err := cache.LoadIndex(); err == nil {
		entries = len(index.Entries)
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Cache ready (%d document(s))", entries)))
	if verbose {
		fmt.Fprintf(out, "   Directory: %s\n", cache.GetCacheDir())
	}
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}
