package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// progressOut receives spinner frames; a non-terminal disables the spinner.
var progressOut io.Writer = os.Stderr

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ProgressStep represents a single step in a multi-step process
type ProgressStep struct {
	Message string
	Fn      func() error
}

// ShowProgress runs fn while a spinner with message is shown on a terminal.
// Off a terminal the message is only logged.
func ShowProgress(ctx context.Context, message string, fn func() error) error {
	if !isTerminal(progressOut) {
		LogInfo("%s", message)
		return fn()
	}
	return showProgressSpinner(ctx, progressOut, message, fn)
}

// ShowProgressWithSteps shows progress for multiple steps
func ShowProgressWithSteps(ctx context.Context, steps []ProgressStep) error {
	for i, step := range steps {
		msg := fmt.Sprintf("[%d/%d] %s", i+1, len(steps), step.Message)
		if err := ShowProgress(ctx, msg, step.Fn); err != nil {
			return fmt.Errorf("%s: %w", step.Message, err)
		}
	}
	return nil
}

func showProgressSpinner(ctx context.Context, w io.Writer, message string, fn func() error) error {
	done := make(chan error, 1)
	stop := make(chan struct{})
	spinnerDone := make(chan struct{})

	go func() {
		defer close(spinnerDone)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = fmt.Fprintf(w, "\r%s %s", progressStyle.Render(spinnerChars[i%len(spinnerChars)]), message)
			}
		}
	}()

	go func() {
		done <- fn()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	close(stop)
	<-spinnerDone

	if err != nil {
		_, _ = fmt.Fprintf(w, "\r%s %s\n", errorStyle.Render("✗"), message)
		return err
	}
	_, _ = fmt.Fprintf(w, "\r%s %s\n", successStyle.Render("✓"), message)
	return nil
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// PrintSuccess writes a success line to w
func PrintSuccess(w io.Writer, message string) {
	printStatus(w, successStyle.Render("✓"), "", message)
}

// PrintError writes an error line to w
func PrintError(w io.Writer, message string) {
	printStatus(w, errorStyle.Render("✗"), "ERROR: ", message)
}

// PrintInfo writes an informational line to w
func PrintInfo(w io.Writer, message string) {
	printStatus(w, progressStyle.Render("ℹ"), "", message)
}

// PrintWarning writes a warning line to w
func PrintWarning(w io.Writer, message string) {
	printStatus(w, warningStyle.Render("⚠"), "WARNING: ", message)
}

// printStatus styles the line on a terminal and falls back to a plain
// prefix elsewhere so piped output stays greppable.
func printStatus(w io.Writer, icon, plain, message string) {
	if isTerminal(w) {
		_, _ = fmt.Fprintf(w, "%s %s\n", icon, message)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", plain, message)
}
