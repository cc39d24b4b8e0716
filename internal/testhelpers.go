package internal

import (
	"time"
)

// CreateTestSession creates a test transcript with sample data
func CreateTestSession(id string) *Session {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Session{
		ID:        id,
		SessionID: "svc-" + id,
		Label:     "lease.pdf",
		Mode:      ModeDocument,
		Messages: []Message{
			{
				Actor:     "assistant",
				Content:   "**Summary:** a twelve month residential lease.",
				Timestamp: now,
			},
			{
				Actor:     "user",
				Content:   "Can I end it early?",
				Timestamp: now,
			},
			{
				Actor:     "assistant",
				Content:   "Only with two months notice:\n* written\n* signed",
				Timestamp: now,
			},
		},
		Metadata: Metadata{
			CreatedAt:    now,
			UpdatedAt:    now,
			MessageCount: 3,
			Ready:        true,
		},
	}
}

// CreateTestSessionWithMessages creates a test transcript with custom messages
func CreateTestSessionWithMessages(id string, messages []Message) *Session {
	return &Session{
		ID:       id,
		Label:    "notes.txt",
		Mode:     ModeDocument,
		Messages: messages,
		Metadata: Metadata{
			MessageCount: len(messages),
		},
	}
}
