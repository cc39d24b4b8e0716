package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/iksnae/leby/internal"
)

// Transcript converts the current conversation into an archivable session.
// Placeholder messages are left out. It returns nil when there is nothing
// to keep.
func (c *Controller) Transcript() *internal.Session {
	snap := c.Snapshot()
	return NewTranscript(snap)
}

// NewTranscript builds an archivable session from a snapshot. Snapshots of
// one conversation map to the same archive id.
func NewTranscript(snap Snapshot) *internal.Session {
	msgs := make([]internal.Message, 0, len(snap.Messages))
	var first, last time.Time
	for _, m := range snap.Messages {
		if m.Placeholder {
			continue
		}
		if first.IsZero() {
			first = m.Time
		}
		last = m.Time
		msgs = append(msgs, internal.Message{
			Timestamp: m.Time.UTC().Format(time.RFC3339),
			Actor:     string(m.Sender),
			Content:   m.Text,
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	mode := internal.ModeDocument
	if snap.General {
		mode = internal.ModeGeneral
	}
	id := snap.TranscriptID
	if id == "" {
		id = uuid.NewString()
	}
	return &internal.Session{
		ID:        id,
		SessionID: snap.SessionID,
		Label:     snap.Label,
		Mode:      mode,
		Messages:  msgs,
		Metadata: internal.Metadata{
			CreatedAt:    first.UTC().Format(time.RFC3339),
			UpdatedAt:    last.UTC().Format(time.RFC3339),
			MessageCount: len(msgs),
			Ready:        snap.Ready,
		},
	}
}
