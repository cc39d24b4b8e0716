// Package tui is the interactive terminal view: an input screen, a
// processing screen and the chat, all driven by controller snapshots.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/chat"
)

const (
	headerHeight = 2
	footerHeight = 2
	inputHeight  = 5

	inputPlaceholder = "Paste the document text, or type the path of a PDF, text or HTML file..."
	chatPlaceholder  = "Ask a question... (Enter to send, /help for commands)"
)

// Extractor turns a document file into text.
type Extractor interface {
	Extract(path string) (string, error)
}

// Archive keeps finished conversations.
type Archive interface {
	Save(session *internal.Session) error
}

// Controller is the part of *chat.Controller the view drives.
type Controller interface {
	Snapshot() chat.Snapshot
	Start(ctx context.Context, text, label string) error
	Switch(ctx context.Context, text, label string) error
	StartGeneral(ctx context.Context) error
	Ask(ctx context.Context, question string)
	Reset()
	Transcript() *internal.Session
}

// changeMsg tells the model to re-read the controller snapshot. Snapshots
// are not carried in the message because callbacks fire from several
// goroutines and may arrive out of order.
type changeMsg struct{}

type noticeMsg chat.Notice

// extractedMsg carries the result of reading a document from disk.
type extractedMsg struct {
	label string
	text  string
	keep  bool // analyze within the current conversation
	err   error
}

type savedMsg struct {
	id  string
	err error
}

// Model is the bubbletea model of the chat program.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	extractor Extractor
	archive   Archive
	formatter *internal.TerminalFormatter
	style     string

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	snap     chat.Snapshot
	notice   *chat.Notice
	busy     bool // extraction in progress
	spinning bool
	width    int
	height   int
	quitting bool

	startup tea.Cmd
}

// NewModel creates the view. archive may be nil, in which case /save is
// unavailable. style selects the glamour style; empty picks one from the
// terminal background.
func NewModel(ctx context.Context, ctrl Controller, extractor Extractor, archive Archive, style string) Model {
	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetWidth(80)
	ta.SetHeight(inputHeight - 2)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(80, 20)
	vp.SetContent("")

	formatter, err := internal.NewTerminalFormatter(76, style)
	if err != nil {
		internal.LogWarn("markdown rendering disabled: %v", err)
	}

	return Model{
		ctx:       ctx,
		ctrl:      ctrl,
		extractor: extractor,
		archive:   archive,
		formatter: formatter,
		style:     style,
		textarea:  ta,
		viewport:  vp,
		spinner:   sp,
		snap:      ctrl.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.startup, m.startSpinnerCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case changeMsg:
		m.snap = m.ctrl.Snapshot()
		m.refreshViewport()
		if m.snap.Phase == chat.PhaseChat {
			m.textarea.Placeholder = chatPlaceholder
		} else {
			m.textarea.Placeholder = inputPlaceholder
		}
		return m, m.startSpinner()

	case noticeMsg:
		n := chat.Notice(msg)
		m.notice = &n
		return m, nil

	case extractedMsg:
		m.busy = false
		if msg.err != nil {
			internal.LogWarn("extraction failed: %v", msg.err)
			m.notice = &chat.Notice{Level: chat.NoticeError, Text: msg.err.Error()}
			return m, nil
		}
		return m, m.startCmd(msg.text, msg.label, msg.keep)

	case savedMsg:
		if msg.err != nil {
			m.notice = &chat.Notice{Level: chat.NoticeError, Text: "Could not save the conversation: " + msg.err.Error()}
		} else {
			m.notice = &chat.Notice{Level: chat.NoticeInfo, Text: "Saved conversation " + msg.id}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.showSpinner() {
			m.spinning = false
			return m, nil
		}
		m.spinning = true
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEsc:
		if m.snap.Phase == chat.PhaseProcessing {
			m.ctrl.Reset()
			return m, nil
		}

	case tea.KeyCtrlG:
		if m.snap.Phase == chat.PhaseInput && !m.busy {
			m.notice = nil
			return m, m.generalCmd()
		}

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		if msg.Paste {
			break
		}
		value := m.textarea.Value()
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		switch m.snap.Phase {
		case chat.PhaseInput:
			if m.busy {
				return m, nil
			}
			m.textarea.Reset()
			m.notice = nil
			return m, m.submitDocument(value, false)
		case chat.PhaseChat:
			m.textarea.Reset()
			m.notice = nil
			if strings.HasPrefix(strings.TrimSpace(value), "/") {
				return m.runCommand(strings.TrimSpace(value))
			}
			return m, m.askCmd(value)
		}
		return m, nil
	}

	if m.snap.Phase == chat.PhaseProcessing {
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height

	vpHeight := height - headerHeight - footerHeight - inputHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width - 2
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(width - 4)

	if f, err := internal.NewTerminalFormatter(width-6, m.style); err == nil {
		m.formatter = f
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// showSpinner reports whether something is in flight that the user is
// waiting for.
func (m Model) showSpinner() bool {
	return m.busy || m.snap.Phase == chat.PhaseProcessing || (m.snap.Phase == chat.PhaseChat && m.snap.Pending != "")
}

// startSpinnerCmd is used by Init, which cannot record the spinning flag.
func (m Model) startSpinnerCmd() tea.Cmd {
	if !m.showSpinner() {
		return nil
	}
	return m.spinner.Tick
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.showSpinner() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}
