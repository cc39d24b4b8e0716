package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MinTextLength is the minimum number of characters (after trimming) a
// document must have before a session is requested for it.
const MinTextLength = 100

// Phase is the workflow screen the user is on.
type Phase int

const (
	PhaseInput      Phase = iota // no session
	PhaseProcessing              // session requested, waiting for readiness
	PhaseChat                    // session exists, possibly not ready yet
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseProcessing:
		return "processing"
	case PhaseChat:
		return "chat"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry of the conversation.
type Message struct {
	Sender      Sender
	Text        string
	Placeholder bool // "still setting up" stand-in for a queued question
	Time        time.Time
}

// NoticeLevel grades a Notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

// Notice is transient user feedback that is not part of the conversation.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	Phase        Phase
	SessionID    string
	Label        string
	Ready        bool
	General      bool // general-help session
	Silent       bool // summary will not replace the conversation
	Polling      bool
	Pending      string
	Messages     []Message
	TranscriptID string // archive id of the conversation
}

// LastMessage returns the most recent message, if any.
func (s Snapshot) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// ValidationError rejects input before any request is made.
type ValidationError struct {
	Field string
	Min   int
	Got   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is too short: need at least %d characters, got %d", e.Field, e.Min, e.Got)
}

// ValidateText checks the minimum document length.
func ValidateText(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < MinTextLength {
		return &ValidationError{Field: "document text", Min: MinTextLength, Got: n}
	}
	return nil
}
