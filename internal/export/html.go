package export

import (
	"html/template"
	"io"

	"github.com/iksnae/leby/internal"
)

// HTMLExporter writes a standalone page. Assistant replies go through the
// reply formatter; everything else is escaped by the template.
type HTMLExporter struct{}

type htmlMessage struct {
	Actor     string
	Timestamp string
	Body      template.HTML
}

var pageTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; line-height: 1.5; }
.msg { padding: .75rem 1rem; margin: .5rem 0; border-radius: .5rem; }
.user { background: #e8f0fe; }
.assistant { background: #f1f3f4; }
.meta { color: #666; font-size: .85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">{{.Mode}} · {{len .Messages}} messages{{if .Created}} · {{.Created}}{{end}}</p>
{{range .Messages}}<div class="msg {{.Actor}}">
<div class="meta">{{.Actor}}{{if .Timestamp}} · {{.Timestamp}}{{end}}</div>
<div class="body">{{.Body}}</div>
</div>
{{end}}</body>
</html>
`))

// Export exports a transcript to HTML
func (e *HTMLExporter) Export(session *internal.Session, w io.Writer) error {
	title := session.Label
	if title == "" {
		title = "Session " + session.ID
	}

	msgs := make([]htmlMessage, 0, len(session.Messages))
	for _, msg := range session.Messages {
		var body template.HTML
		if msg.Actor == "assistant" {
			// FormatHTML escapes its input and sanitises its output.
			body = template.HTML(internal.FormatHTML(msg.Content))
		} else {
			body = template.HTML(template.HTMLEscapeString(msg.Content))
		}
		msgs = append(msgs, htmlMessage{Actor: msg.Actor, Timestamp: msg.Timestamp, Body: body})
	}

	return pageTmpl.Execute(w, struct {
		Title    string
		Mode     string
		Created  string
		Messages []htmlMessage
	}{
		Title:    title,
		Mode:     session.Mode,
		Created:  session.Metadata.CreatedAt,
		Messages: msgs,
	})
}

// Extension returns the file extension for this format
func (e *HTMLExporter) Extension() string {
	return "html"
}
