package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/chat"
)

const helpText = "Commands: /switch <file> analyze another document, /save keep this conversation, " +
	"/reset start over, /quit leave."

// submitDocument treats a single line naming a supported file as a path and
// anything else as pasted text.
func (m *Model) submitDocument(value string, keep bool) tea.Cmd {
	candidate := strings.TrimSpace(value)
	if isDocumentPath(candidate) {
		m.busy = true
		return tea.Batch(m.extractCmd(candidate, keep), m.startSpinner())
	}
	return m.startCmd(value, chat.DefaultLabel, keep)
}

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/reset":
		m.ctrl.Reset()
		return m, nil
	case "/save":
		return m, m.saveCmd()
	case "/switch":
		if arg == "" {
			m.notice = &chat.Notice{Level: chat.NoticeWarning, Text: "Usage: /switch <file or text>"}
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		return m, m.submitDocument(arg, true)
	case "/help":
		m.notice = &chat.Notice{Level: chat.NoticeInfo, Text: helpText}
		return m, nil
	}

	m.notice = &chat.Notice{Level: chat.NoticeWarning, Text: fmt.Sprintf("Unknown command %s. %s", name, helpText)}
	return m, nil
}

func (m Model) extractCmd(path string, keep bool) tea.Cmd {
	extractor := m.extractor
	return func() tea.Msg {
		text, err := extractor.Extract(path)
		return extractedMsg{label: filepath.Base(path), text: text, keep: keep, err: err}
	}
}

// startCmd runs the blocking start request off the update loop. Failures are
// reported through the controller's notices.
func (m Model) startCmd(text, label string, keep bool) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		var err error
		if keep {
			err = ctrl.Switch(ctx, text, label)
		} else {
			err = ctrl.Start(ctx, text, label)
		}
		if err != nil {
			internal.LogDebug("start %q: %v", label, err)
		}
		return nil
	}
}

func (m Model) generalCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		if err := ctrl.StartGeneral(ctx); err != nil {
			internal.LogDebug("general start: %v", err)
		}
		return nil
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.Ask(ctx, question)
		return nil
	}
}

func (m Model) saveCmd() tea.Cmd {
	archive, ctrl := m.archive, m.ctrl
	return func() tea.Msg {
		if archive == nil {
			return savedMsg{err: errors.New("no archive configured")}
		}
		session := ctrl.Transcript()
		if session == nil {
			return savedMsg{err: errors.New("nothing to save yet")}
		}
		if err := archive.Save(session); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{id: session.ID}
	}
}

// isDocumentPath reports whether s is a single line with a supported
// extension that names an existing file.
func isDocumentPath(s string) bool {
	if s == "" || strings.ContainsAny(s, "\r\n") {
		return false
	}
	if !internal.IsSupportedFile(s) {
		return false
	}
	info, err := os.Stat(s)
	return err == nil && !info.IsDir()
}
