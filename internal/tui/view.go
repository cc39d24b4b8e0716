package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/iksnae/leby/internal/chat"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	placeholderStyle = lipgloss.NewStyle().
				Italic(true).
				Foreground(lipgloss.Color("8"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13"))

	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.snap.Phase {
	case chat.PhaseProcessing:
		body = m.processingView()
	case chat.PhaseChat:
		body = m.chatView()
	default:
		body = m.inputView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.noticeView())
}

func (m Model) headerView() string {
	title := titleStyle.Render("leby")
	if m.snap.Label == "" {
		return title + "\n"
	}

	status := "ready"
	switch {
	case m.snap.Phase == chat.PhaseProcessing:
		status = "analyzing"
	case !m.snap.Ready:
		status = "setting up"
	}
	return fmt.Sprintf("%s  %s  %s\n", title, labelStyle.Render(m.snap.Label), mutedStyle.Render(status))
}

func (m Model) inputView() string {
	var b strings.Builder
	b.WriteString("Tell me what you need help with.\n\n")
	b.WriteString(mutedStyle.Render("Enter a file path (PDF, text or HTML) or paste the text of your document."))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Press Ctrl+G for general help without a document."))
	b.WriteString("\n\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " Reading document...\n")
	}
	b.WriteString(inputBoxStyle.Render(m.textarea.View()))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Enter submit • Alt+Enter newline • Ctrl+C quit"))
	return b.String()
}

func (m Model) processingView() string {
	label := m.snap.Label
	if label == "" {
		label = "your document"
	}
	return fmt.Sprintf("\n%s Analyzing %s...\n\n%s",
		m.spinner.View(), labelStyle.Render(label),
		mutedStyle.Render("This can take a minute. Esc to cancel, Ctrl+C to quit."))
}

func (m Model) chatView() string {
	footer := "Enter send • PgUp/PgDn scroll • /help commands • Ctrl+C quit"
	if m.busy || m.snap.Pending != "" {
		footer = m.spinner.View() + " " + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		inputBoxStyle.Render(m.textarea.View()),
		mutedStyle.Render(footer),
	)
}

func (m Model) noticeView() string {
	if m.notice == nil {
		return ""
	}
	switch m.notice.Level {
	case chat.NoticeError:
		return errorStyle.Render("✗ " + m.notice.Text)
	case chat.NoticeWarning:
		return warningStyle.Render("! " + m.notice.Text)
	default:
		return infoStyle.Render(m.notice.Text)
	}
}

// renderMessages renders the whole conversation for the viewport.
func (m Model) renderMessages() string {
	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		ts := mutedStyle.Render(msg.Time.Format("15:04"))
		switch {
		case msg.Placeholder:
			b.WriteString(assistantStyle.Render("Assistant") + " " + ts + "\n")
			b.WriteString(placeholderStyle.Render(msg.Text))
		case msg.Sender == chat.SenderUser:
			b.WriteString(userStyle.Render("You") + " " + ts + "\n")
			b.WriteString(msg.Text)
		default:
			b.WriteString(assistantStyle.Render("Assistant") + " " + ts + "\n")
			b.WriteString(m.formatter.Format(msg.Text))
		}
	}
	return b.String()
}
