package internal

// Session is an archived conversation with the analysis service
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"` // id assigned by the service
	Label     string    `json:"label" yaml:"label"`
	Mode      string    `json:"mode" yaml:"mode"` // "document", "general"
	Messages  []Message `json:"messages" yaml:"messages"`
	Metadata  Metadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Message represents a normalized message
type Message struct {
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Actor     string `json:"actor" yaml:"actor"` // "user", "assistant"
	Content   string `json:"content" yaml:"content"`
}

// Metadata contains additional session information
type Metadata struct {
	CreatedAt    string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	MessageCount int    `json:"message_count" yaml:"message_count"`
	Ready        bool   `json:"ready" yaml:"ready"`
}

const (
	ModeDocument = "document"
	ModeGeneral  = "general"
)
