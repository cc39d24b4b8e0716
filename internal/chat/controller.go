// Package chat owns the document session workflow: starting a session,
// waiting for the service to finish its analysis, and the conversation that
// follows.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/api"
)

const (
	// GeneralLabel names the session used in general help mode.
	GeneralLabel = "General Help"

	// DefaultLabel names sessions started from pasted text.
	DefaultLabel = "Pasted text"

	Greeting = "Hello! I'm your legal assistant. Ask me anything about your situation " +
		"and I'll do my best to explain your options in plain language."

	PlaceholderText = "I'm still getting set up. I'll answer your question as soon as I'm ready."

	fallbackReply   = "Sorry, I couldn't get an answer right now. Please try again."
	fallbackSummary = "Your document has been analyzed. Ask me anything about it."
)

// generalSeed stands in for a document in general help mode.
const generalSeed = "This is a general help session. The user has not uploaded a document. " +
	"Answer general questions about everyday legal situations such as tenancy, employment, " +
	"consumer purchases, traffic incidents and family matters, and suggest when to consult a lawyer."

// SessionAPI is the subset of the analysis service the controller needs.
type SessionAPI interface {
	StartFromText(ctx context.Context, text, filename string) (*api.StartResponse, error)
	Status(ctx context.Context, sessionID string) (*api.StatusResponse, error)
	Query(ctx context.Context, sessionID, query string) (*api.QueryResponse, error)
}

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	OnChange     func(Snapshot) // called after every state change
	OnNotice     func(Notice)   // transient feedback
}

// Controller is the session state machine. All state is guarded by mu;
// remote calls are made without holding it.
type Controller struct {
	api  SessionAPI
	opts Options

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	phase     Phase
	sessionID string
	label     string
	ready     bool
	general   bool
	silent    bool
	pending   string
	messages  []Message

	// transcriptID names the conversation in the archive; a switch keeps it.
	transcriptID string

	// placeholderShown is true while a placeholder stands for the pending question.
	placeholderShown bool

	// startGen invalidates in-flight start requests; epoch invalidates
	// in-flight queries when the conversation is discarded.
	startGen uint64
	epoch    uint64

	pollGen    uint64
	pollCancel context.CancelFunc
	pollStarts int
	pollStops  int
}

// NewController creates a controller in the input phase.
func NewController(client SessionAPI, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = internal.DefaultPollInterval
	}
	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:          client,
		opts:         opts,
		base:         base,
		cancel:       cancel,
		phase:        PhaseInput,
		transcriptID: uuid.NewString(),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start validates text, requests a session for it and waits for the
// analysis in the processing phase. The conversation is replaced by the
// summary once the service reports the session ready.
func (c *Controller) Start(ctx context.Context, text, label string) error {
	return c.start(ctx, text, label, false)
}

// Switch analyzes another document from within the chat. History is kept
// and the summary is appended when ready.
func (c *Controller) Switch(ctx context.Context, text, label string) error {
	return c.start(ctx, text, label, true)
}

func (c *Controller) start(ctx context.Context, text, label string, keepHistory bool) error {
	if err := ValidateText(text); err != nil {
		c.notify(NoticeWarning, "Please provide at least 100 characters of text to analyze.")
		return err
	}
	if label == "" {
		label = DefaultLabel
	}

	c.mu.Lock()
	if keepHistory && c.phase != PhaseChat {
		keepHistory = false
	}
	c.startGen++
	gen := c.startGen
	// A switch leaves the current session and its poll running until the
	// new one exists, so a failed switch loses nothing.
	if !keepHistory {
		c.stopPollingLocked()
		c.clearLocked()
		c.epoch++
		c.label = label
		c.phase = PhaseProcessing
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	internal.LogInfo("requesting session for %q (%d chars)", label, len(text))
	resp, err := c.api.StartFromText(ctx, text, label)

	c.mu.Lock()
	if gen != c.startGen {
		c.mu.Unlock()
		internal.LogDebug("discarding superseded start for %q", label)
		return nil
	}
	if err != nil {
		if !keepHistory {
			c.resetLocked()
		}
		snap = c.snapshotLocked()
		c.mu.Unlock()
		internal.LogError("session start failed: %v", err)
		c.emit(snap)
		c.notify(NoticeError, "Could not start the analysis: "+detail(err, "the service did not respond"))
		return err
	}

	c.sessionID = resp.SessionID
	c.ready = false
	c.general = false
	c.silent = keepHistory
	c.label = label
	if resp.Filename != "" {
		c.label = resp.Filename
	}
	if keepHistory {
		c.epoch++
	}
	c.startPollingLocked()
	snap = c.snapshotLocked()
	c.mu.Unlock()

	internal.LogInfo("session %s started for %q", resp.SessionID, label)
	c.emit(snap)
	return nil
}

// StartGeneral opens the chat right away with a greeting while a general
// help session warms up in the background. Questions asked before it is
// ready are queued.
func (c *Controller) StartGeneral(ctx context.Context) error {
	c.mu.Lock()
	c.stopPollingLocked()
	c.startGen++
	gen := c.startGen
	c.clearLocked()
	c.epoch++
	c.general = true
	c.silent = true
	c.label = GeneralLabel
	c.phase = PhaseChat
	c.messages = []Message{{Sender: SenderAssistant, Text: Greeting, Time: time.Now()}}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	resp, err := c.api.StartFromText(ctx, generalSeed, GeneralLabel)

	c.mu.Lock()
	if gen != c.startGen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.resetLocked()
		snap = c.snapshotLocked()
		c.mu.Unlock()
		internal.LogError("general session start failed: %v", err)
		c.emit(snap)
		c.notify(NoticeError, "Could not start general help: "+detail(err, "the service did not respond"))
		return err
	}

	c.sessionID = resp.SessionID
	c.startPollingLocked()
	snap = c.snapshotLocked()
	c.mu.Unlock()

	internal.LogInfo("general session %s started", resp.SessionID)
	c.emit(snap)
	return nil
}

// Ask sends a question within the current session. Failures never reach
// the caller: they end up in the conversation or in the pending slot.
func (c *Controller) Ask(ctx context.Context, question string) {
	q := strings.TrimSpace(question)
	if q == "" {
		return
	}

	c.mu.Lock()
	if c.phase == PhaseInput {
		c.mu.Unlock()
		internal.LogWarn("question asked without a session, ignoring")
		return
	}
	c.appendLocked(Message{Sender: SenderUser, Text: q})
	id, epoch := c.sessionID, c.epoch
	if id == "" {
		// Session id not assigned yet: same as the service saying not ready.
		c.deferLocked(q)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	if id == "" {
		return
	}
	c.query(ctx, id, epoch, q)
}

// query sends q and records the outcome, unless the conversation it
// belongs to has been discarded meanwhile.
func (c *Controller) query(ctx context.Context, id string, epoch uint64, q string) {
	c.send(ctx, id, epoch, q, true)
}

// send asks q once. A not-ready reply that lands after the session turned
// ready is resent once when retry is set.
func (c *Controller) send(ctx context.Context, id string, epoch uint64, q string, retry bool) {
	resp, err := c.api.Query(ctx, id, q)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		internal.LogDebug("dropping answer for discarded session %s", id)
		return
	}
	switch {
	case err == nil:
		c.appendLocked(Message{Sender: SenderAssistant, Text: resp.Response})
	case errors.Is(err, api.ErrSessionNotReady) && !c.ready:
		internal.LogInfo("session %s not ready, queuing question", id)
		c.deferLocked(q)
	case errors.Is(err, api.ErrSessionNotReady) && retry && id == c.sessionID:
		c.mu.Unlock()
		internal.LogInfo("session %s became ready during the query, asking again", id)
		c.send(ctx, id, epoch, q, false)
		return
	default:
		internal.LogWarn("query on session %s failed: %v", id, err)
		c.appendLocked(Message{Sender: SenderAssistant, Text: detail(err, fallbackReply)})
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Reset discards the session and the conversation and returns to input.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Close stops background work. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopPollingLocked()
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) resetLocked() {
	c.stopPollingLocked()
	c.startGen++
	c.epoch++
	c.clearLocked()
	c.phase = PhaseInput
}

func (c *Controller) clearLocked() {
	c.sessionID = ""
	c.label = ""
	c.ready = false
	c.general = false
	c.silent = false
	c.pending = ""
	c.placeholderShown = false
	c.messages = nil
	c.transcriptID = uuid.NewString()
}

// deferLocked keeps q as the only pending question and shows one
// placeholder for it.
func (c *Controller) deferLocked(q string) {
	c.pending = q
	if c.placeholderShown {
		return
	}
	if n := len(c.messages); n > 0 && c.messages[n-1].Placeholder {
		c.placeholderShown = true
		return
	}
	// placeholders of questions answered earlier go
	kept := c.messages[:0]
	for _, m := range c.messages {
		if !m.Placeholder {
			kept = append(kept, m)
		}
	}
	c.messages = kept
	c.appendLocked(Message{Sender: SenderAssistant, Text: PlaceholderText, Placeholder: true})
	c.placeholderShown = true
}

func (c *Controller) appendLocked(m Message) {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	c.messages = append(c.messages, m)
}

func (c *Controller) snapshotLocked() Snapshot {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		Phase:        c.phase,
		SessionID:    c.sessionID,
		Label:        c.label,
		Ready:        c.ready,
		General:      c.general,
		Silent:       c.silent,
		Polling:      c.pollCancel != nil,
		Pending:      c.pending,
		Messages:     msgs,
		TranscriptID: c.transcriptID,
	}
}

func (c *Controller) emit(s Snapshot) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

func (c *Controller) notify(level NoticeLevel, text string) {
	if c.opts.OnNotice != nil {
		c.opts.OnNotice(Notice{Level: level, Text: text})
	}
}

// detail extracts the service's human-readable message from err.
func detail(err error, fallback string) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fallback
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
