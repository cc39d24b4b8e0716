package chat

import (
	"context"
	"time"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/api"
)

// startPollingLocked replaces any running poll task with a new one for the
// current session id.
func (c *Controller) startPollingLocked() {
	c.stopPollingLocked()
	c.pollGen++
	ctx, cancel := context.WithCancel(c.base)
	c.pollCancel = cancel
	c.pollStarts++

	c.wg.Add(1)
	go c.poll(ctx, c.pollGen, c.sessionID)
}

func (c *Controller) stopPollingLocked() {
	if c.pollCancel == nil {
		return
	}
	c.pollCancel()
	c.pollCancel = nil
	c.pollStops++
}

func (c *Controller) poll(ctx context.Context, gen uint64, sessionID string) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := c.api.Status(ctx, sessionID)
		if ctx.Err() != nil {
			return
		}
		if done := c.applyStatus(gen, sessionID, st, err); done {
			return
		}
	}
}

// applyStatus folds one poll result into the state. It reports whether the
// poll task is finished.
func (c *Controller) applyStatus(gen uint64, sessionID string, st *api.StatusResponse, err error) bool {
	c.mu.Lock()
	if gen != c.pollGen || c.pollCancel == nil {
		c.mu.Unlock()
		internal.LogDebug("dropping stale status for session %s", sessionID)
		return true
	}

	if err == nil && st.Status != api.StatusReady && st.Status != api.StatusError {
		c.mu.Unlock()
		if st.Status != api.StatusProcessing {
			internal.LogWarn("session %s reported unknown status %q, still waiting", sessionID, st.Status)
		}
		return false
	}

	c.stopPollingLocked()

	if err != nil || st.Status == api.StatusError {
		c.ready = false
		if !c.general && !c.silent {
			c.resetLocked()
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()

		msg := "The document could not be analyzed. Please try again."
		if err != nil {
			internal.LogError("polling session %s failed: %v", sessionID, err)
			msg = "Lost contact with the analysis service: " + detail(err, "no response")
		} else {
			internal.LogError("session %s reported ERROR", sessionID)
		}
		c.emit(snap)
		c.notify(NoticeError, msg)
		return true
	}

	c.ready = true
	summary := st.Summary
	if summary == "" {
		summary = fallbackSummary
	}
	switch {
	case c.general:
		// the greeting stays
	case c.silent:
		c.appendLocked(Message{Sender: SenderAssistant, Text: summary})
	default:
		c.messages = []Message{{Sender: SenderAssistant, Text: summary, Time: time.Now()}}
		c.phase = PhaseChat
	}

	pending := c.pending
	c.pending = ""
	c.placeholderShown = false
	id, epoch := c.sessionID, c.epoch
	snap := c.snapshotLocked()
	c.mu.Unlock()

	internal.LogInfo("session %s is ready", sessionID)
	c.emit(snap)

	if pending != "" {
		internal.LogInfo("sending queued question for session %s", id)
		c.query(c.base, id, epoch, pending)
	}
	return true
}

// pollCounts reports how many poll tasks were started and stopped.
func (c *Controller) pollCounts() (starts, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollStarts, c.pollStops
}
