package internal

import (
	"html"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
)

// BulletPrefix replaces a leading "* " on a line of assistant text.
const BulletPrefix = "  • "

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*\n]+)\*`)

	// replyPolicy allows exactly the markup FormatHTML emits.
	replyPolicy = func() *bluemonday.Policy {
		p := bluemonday.NewPolicy()
		p.AllowElements("strong", "em", "br")
		return p
	}()
)

// FormatHTML converts the lightweight markup used in assistant replies into
// safe HTML. Any markup already present in raw is escaped.
func FormatHTML(raw string) string {
	return replyPolicy.Sanitize(convertMarkup(html.EscapeString(raw)))
}

// convertMarkup expects text that is already escaped.
func convertMarkup(escaped string) string {
	lines := strings.Split(strings.ReplaceAll(escaped, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "* ") {
			lines[i] = BulletPrefix + strings.TrimPrefix(line, "* ")
		}
	}
	out := strings.Join(lines, "\n")
	out = boldRe.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicRe.ReplaceAllString(out, "<em>$1</em>")
	return strings.ReplaceAll(out, "\n", "<br>")
}

// TerminalFormatter renders assistant replies for the terminal.
type TerminalFormatter struct {
	renderer *glamour.TermRenderer
}

// NewTerminalFormatter creates a formatter wrapping at width. An empty style
// picks one from the terminal background.
func NewTerminalFormatter(width int, style string) (*TerminalFormatter, error) {
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStylePath(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	return &TerminalFormatter{renderer: r}, nil
}

// Format renders raw as markdown. On failure the raw text is returned.
func (f *TerminalFormatter) Format(raw string) string {
	if f == nil || f.renderer == nil {
		return raw
	}
	out, err := f.renderer.Render(raw)
	if err != nil {
		LogDebug("render reply: %v", err)
		return raw
	}
	return strings.Trim(out, "\n")
}
