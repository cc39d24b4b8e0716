package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/leby/internal"
)

// JSONLExporter exports transcripts in JSONL format (one message per line)
type JSONLExporter struct{}

type jsonlLine struct {
	Session   string `json:"session"`
	Actor     string `json:"actor"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Export exports a transcript to JSONL format
func (e *JSONLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, msg := range session.Messages {
		line := jsonlLine{
			Session:   session.ID,
			Actor:     msg.Actor,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
