package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iksnae/leby/internal"
	"gopkg.in/yaml.v3"
)

// Formats lists the accepted --format values.
var Formats = []string{"jsonl", "json", "yaml", "md", "html"}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session *internal.Session, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &documentExporter{ext: "yaml", encode: encodeYAML}, nil
	case "json":
		return &documentExporter{ext: "json", encode: encodeJSON}, nil
	case "html":
		return &HTMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, json, yaml, md, html)", format)
	}
}

// documentExporter writes the whole transcript as a single encoded document.
type documentExporter struct {
	ext    string
	encode func(w io.Writer, session *internal.Session) error
}

func (e *documentExporter) Export(session *internal.Session, w io.Writer) error {
	return e.encode(w, session)
}

func (e *documentExporter) Extension() string {
	return e.ext
}

func encodeJSON(w io.Writer, session *internal.Session) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(session)
}

func encodeYAML(w io.Writer, session *internal.Session) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(session); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// FileName is the name a transcript is written under.
func FileName(session *internal.Session, e Exporter) string {
	return fmt.Sprintf("session_%s.%s", session.ID, e.Extension())
}

// WriteFile exports session into dir and returns the written path.
func WriteFile(e Exporter, session *internal.Session, dir string) (string, error) {
	path := filepath.Join(dir, FileName(session, e))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &internal.ExportError{Format: e.Extension(), Path: dir, Err: err}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: e.Extension(), Path: path, Err: err}
	}
	if err := e.Export(session, file); err != nil {
		_ = file.Close()
		return "", &internal.ExportError{Format: e.Extension(), Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &internal.ExportError{Format: e.Extension(), Path: path, Err: err}
	}
	return path, nil
}
