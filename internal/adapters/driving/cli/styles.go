package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// palette holds the colours used for command output.
var palette = struct {
	Primary, Secondary, Muted, Success, Warning, Error lipgloss.Color
}{
	Primary:   lipgloss.Color("#7C3AED"), // Purple
	Secondary: lipgloss.Color("#06B6D4"), // Cyan
	Muted:     lipgloss.Color("#6C7086"), // Medium gray
	Success:   lipgloss.Color("#A6E3A1"), // Green
	Warning:   lipgloss.Color("#F9E2AF"), // Yellow
	Error:     lipgloss.Color("#F38BA8"), // Red
}

// styles renders command output. Plain output is used when the writer is
// not a terminal, so piped output and tests see unstyled text.
type styles struct {
	enabled bool

	title   lipgloss.Style
	name    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	return &styles{
		enabled: isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(palette.Primary),
		name:    lipgloss.NewStyle().Bold(true).Foreground(palette.Secondary),
		muted:   lipgloss.NewStyle().Foreground(palette.Muted),
		success: lipgloss.NewStyle().Foreground(palette.Success),
		warning: lipgloss.NewStyle().Foreground(palette.Warning),
		failure: lipgloss.NewStyle().Bold(true).Foreground(palette.Error),
	}
}

func (s *styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s *styles) Title(text string) string   { return s.render(s.title, text) }
func (s *styles) Name(text string) string    { return s.render(s.name, text) }
func (s *styles) Muted(text string) string   { return s.render(s.muted, text) }
func (s *styles) Success(text string) string { return s.render(s.success, text) }
func (s *styles) Warning(text string) string { return s.render(s.warning, text) }
func (s *styles) Failure(text string) string { return s.render(s.failure, text) }

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
