package format

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// maxCellWidth bounds a table column in text output.
const maxCellWidth = 48

// Table renders as aligned columns in text output and as Data otherwise.
type Table struct {
	Columns []string
	Rows    [][]string
	Data    any
}

func (t Table) MarshalJSON() ([]byte, error) { return json.Marshal(t.Data) }

// Document renders as markdown in text output and as Data otherwise.
type Document struct {
	Markdown string
	Data     any
}

func (d Document) MarshalJSON() ([]byte, error) { return json.Marshal(d.Data) }

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

// WriteText writes tables and documents for people. The {"data": ...}
// envelope is unwrapped; any other value falls back to indented JSON.
func WriteText(w io.Writer, v any) error {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		if d, ok := m["data"]; ok {
			v = d
		}
	}
	switch t := v.(type) {
	case Table:
		_, err := io.WriteString(w, renderTable(t))
		return err
	case Document:
		_, err := io.WriteString(w, renderMarkdown(t.Markdown, 80, styleFor(w))+"\n")
		return err
	case string:
		_, err := io.WriteString(w, t+"\n")
		return err
	}
	return WriteJSON(w, v, true)
}

func renderTable(t Table) string {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = xansi.StringWidth(c)
	}
	cells := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = make([]string, len(t.Columns))
		for i := range t.Columns {
			var s string
			if i < len(row) {
				s = strings.Join(strings.Fields(row[i]), " ")
			}
			if xansi.StringWidth(s) > maxCellWidth {
				s = xansi.Truncate(s, maxCellWidth, "…")
			}
			cells[r][i] = s
			widths[i] = max(widths[i], xansi.StringWidth(s))
		}
	}

	var b strings.Builder
	line := func(row []string, style *lipgloss.Style) {
		for i, s := range row {
			pad := strings.Repeat(" ", widths[i]-xansi.StringWidth(s))
			if style != nil {
				s = style.Render(s)
			}
			b.WriteString(s)
			if i != len(row)-1 {
				b.WriteString(pad)
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}
	line(t.Columns, &headerStyle)
	for _, row := range cells {
		line(row, nil)
	}
	return b.String()
}

// styleFor picks a glamour style for w: plain for anything that is not a
// color terminal.
func styleFor(w io.Writer) string {
	if termenv.NewOutput(w).Profile == termenv.Ascii {
		return "notty"
	}
	// Not "auto": background detection can block on some terminals.
	return "dark"
}

var (
	mdRendererMu sync.Mutex
	mdRenderers  = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int, style string) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
