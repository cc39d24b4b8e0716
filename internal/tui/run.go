package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/chat"
)

// Options configures Run.
type Options struct {
	PollInterval time.Duration
	Extractor    Extractor
	Archive      Archive // optional
	Style        string  // glamour style, empty for automatic

	// File is analyzed right away when set.
	File string
	// General opens general help right away.
	General bool
}

// relay forwards controller callbacks into the running program.
type relay struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *relay) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *relay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, client chat.SessionAPI, opts Options) error {
	r := &relay{}
	ctrl := chat.NewController(client, chat.Options{
		PollInterval: opts.PollInterval,
		OnChange:     func(chat.Snapshot) { r.send(changeMsg{}) },
		OnNotice:     func(n chat.Notice) { r.send(noticeMsg(n)) },
	})
	defer ctrl.Close()

	m := NewModel(ctx, ctrl, opts.Extractor, opts.Archive, opts.Style)
	switch {
	case opts.File != "":
		m.busy = true
		m.startup = m.extractCmd(opts.File, false)
	case opts.General:
		m.startup = m.generalCmd()
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	r.set(p)

	internal.LogInfo("chat started")
	_, err := p.Run()
	r.set(nil)
	internal.LogInfo("chat ended")
	return err
}
