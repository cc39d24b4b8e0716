package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/chat"
	"github.com/spf13/cobra"
)

var (
	analyzeQuestions []string
	analyzeSave      bool
	analyzeNoCache   bool
	analyzeStyle     string
)

var errAnalysisFailed = errors.New("the document could not be analyzed")

// analyzeCmd runs one analysis without the interactive view
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|->",
	Short: "Analyze a document and print the summary",
	Long: `Send a document to the analysis service, wait for the summary and print it.

Questions given with --question are asked in order once the summary is ready.
Use "-" to read the document text from standard input.`,
	Example: `  leby analyze lease.pdf
  leby analyze contract.html -q "What is the notice period?" -q "Who pays repairs?"
  cat letter.txt | leby analyze - --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var (
			mu         sync.Mutex
			lastNotice string
		)
		changed := make(chan struct{}, 1)
		ctrl := chat.NewController(newClient(), chat.Options{
			PollInterval: cfg.PollInterval,
			OnChange: func(chat.Snapshot) {
				select {
				case changed <- struct{}{}:
				default:
				}
			},
			OnNotice: func(n chat.Notice) {
				mu.Lock()
				lastNotice = n.Text
				mu.Unlock()
			},
		})
		defer ctrl.Close()

		doc, steps, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}
		steps = append(steps, internal.ProgressStep{
			Message: "Analyzing " + doc.label,
			Fn: func() error {
				if err := ctrl.Start(ctx, doc.text, doc.label); err != nil {
					return err
				}
				return waitReady(ctx, ctrl, changed)
			},
		})

		if err := internal.ShowProgressWithSteps(ctx, steps); err != nil {
			mu.Lock()
			notice := lastNotice
			mu.Unlock()
			if errors.Is(err, errAnalysisFailed) && notice != "" {
				return fmt.Errorf("%w: %s", errAnalysisFailed, notice)
			}
			return err
		}

		formatter, err := internal.NewTerminalFormatter(80, analyzeStyle)
		if err != nil {
			internal.LogWarn("markdown rendering disabled: %v", err)
		}

		snap := ctrl.Snapshot()
		fmt.Fprintln(out, sessionHeaderStyle.Render("📄 "+snap.Label))
		printMessages(out, formatter, snap.Messages)

		for _, q := range analyzeQuestions {
			before := len(ctrl.Snapshot().Messages)
			ctrl.Ask(ctx, q)
			msgs := ctrl.Snapshot().Messages
			if before > len(msgs) {
				before = len(msgs)
			}
			printMessages(out, formatter, msgs[before:])
		}

		if analyzeSave {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			session := ctrl.Transcript()
			if err := archive.Save(session); err != nil {
				return fmt.Errorf("failed to save conversation: %w", err)
			}
			internal.PrintSuccess(out, "Saved conversation "+session.ID)
		}
		return nil
	},
}

type document struct {
	text  string
	label string
}

// readDocument resolves arg into a document. Files are extracted by the
// returned step so the work shows up in the progress output.
func readDocument(cmd *cobra.Command, arg string) (*document, []internal.ProgressStep, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return &document{text: string(data), label: chat.DefaultLabel}, nil, nil
	}

	if err := checkSupported(arg); err != nil {
		return nil, nil, err
	}
	doc := &document{label: filepath.Base(arg)}
	step := internal.ProgressStep{
		Message: "Reading " + doc.label,
		Fn: func() error {
			text, err := newExtractor(analyzeNoCache).Extract(arg)
			doc.text = text
			return err
		},
	}
	return doc, []internal.ProgressStep{step}, nil
}

// waitReady blocks until polling has ended.
func waitReady(ctx context.Context, ctrl *chat.Controller, changed <-chan struct{}) error {
	for {
		snap := ctrl.Snapshot()
		if !snap.Polling {
			if snap.Ready {
				return nil
			}
			return errAnalysisFailed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printMessages(w io.Writer, formatter *internal.TerminalFormatter, msgs []chat.Message) {
	for _, msg := range msgs {
		if msg.Sender == chat.SenderUser {
			fmt.Fprintln(w, userMessageStyle.Render("👤 You"))
			fmt.Fprintln(w, messageContentStyle.Render(wrapText(msg.Text, 80)))
			continue
		}
		fmt.Fprintln(w, assistantMessageStyle.Render("🤖 Assistant"))
		fmt.Fprintln(w, formatter.Format(msg.Text))
		fmt.Fprintln(w)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringArrayVarP(&analyzeQuestions, "question", "q", nil, "Question to ask after the summary (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Save the conversation to the archive")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Do not use cached extraction results")
	analyzeCmd.Flags().StringVar(&analyzeStyle, "style", "", "Markdown style (dark, light, notty); detected by default")
}
