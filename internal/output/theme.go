package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
	"github.com/mattn/go-isatty"
)

// Theme holds the styles used by the text renderers. The zero Theme renders
// plain text.
type Theme struct {
	Heading  lipgloss.Style
	Dim      lipgloss.Style
	Good     lipgloss.Style
	Bad      lipgloss.Style
	Changed  lipgloss.Style
	Node     lipgloss.Style
	levels   map[severity.Level]lipgloss.Style
	colorful bool
}

// NewTheme returns a colored theme bound to w, or a plain one when color is
// false.
func NewTheme(w io.Writer, color bool) Theme {
	if !color {
		return Theme{}
	}
	r := lipgloss.NewRenderer(w)
	return Theme{
		Heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		Dim:     r.NewStyle().Faint(true),
		Good:    r.NewStyle().Foreground(lipgloss.Color("2")),
		Bad:     r.NewStyle().Foreground(lipgloss.Color("1")),
		Changed: r.NewStyle().Foreground(lipgloss.Color("3")),
		Node:    r.NewStyle().Bold(true),
		levels: map[severity.Level]lipgloss.Style{
			severity.High:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(severity.High.Border())),
			severity.Medium: r.NewStyle().Foreground(lipgloss.Color(severity.Medium.Border())),
			severity.Low:    r.NewStyle().Foreground(lipgloss.Color("6")),
		},
		colorful: true,
	}
}

// ColorEnabled reports whether w is a terminal that should get colored
// output. NO_COLOR disables it.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (t Theme) render(s lipgloss.Style, text string) string {
	if !t.colorful {
		return text
	}
	return s.Render(text)
}

func (t Theme) level(l severity.Level, text string) string {
	s, ok := t.levels[l]
	if !ok {
		return text
	}
	return t.render(s, text)
}
