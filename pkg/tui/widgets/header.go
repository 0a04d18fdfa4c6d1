package widgets

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
)

type Keybind struct {
	Key   string
	Label string
}

// Header renders the title bar: program name, stream connection state and
// the active view.
type Header struct {
	Title      string
	Status     string
	StatusIcon string
	StatusOk   bool
	Since      time.Duration
	Right      string
	Width      int
	theme      styles.Theme
}

func NewHeader(title string) Header {
	return Header{Title: title, theme: styles.DefaultTheme()}
}

func (h Header) WithStatus(icon, status string, ok bool) Header {
	h.StatusIcon, h.Status, h.StatusOk = icon, status, ok
	return h
}

func (h Header) WithSince(d time.Duration) Header {
	h.Since = d
	return h
}

func (h Header) WithRight(s string) Header {
	h.Right = s
	return h
}

func (h Header) WithWidth(w int) Header {
	h.Width = w
	return h
}

func (h Header) Render() string {
	theme := h.theme

	left := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary).
		Padding(0, 1).
		Render(h.Title)

	if h.Status != "" {
		statusStyle := theme.OutcomeError
		if h.StatusOk {
			statusStyle = theme.OutcomeSuccess
		}
		icon := h.StatusIcon
		if icon == "" {
			icon = styles.IconSystem
		}
		status := statusStyle.Render(icon) + " " + lipgloss.NewStyle().Foreground(theme.Text).Render(h.Status)
		if h.Since > 0 {
			status += theme.TitleMuted.Render(fmt.Sprintf(" (%s)", formatDuration(h.Since)))
		}
		left = lipgloss.JoinHorizontal(lipgloss.Center, left, "  ", status)
	}

	right := theme.TitleMuted.Render(h.Right)
	gap := h.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(gap).Render(""), right)

	return lipgloss.JoinVertical(lipgloss.Left, line, Separator(h.Width, theme))
}

// Separator is a full-width heavy rule.
func Separator(width int, theme styles.Theme) string {
	if width <= 0 {
		width = 80
	}
	rule := make([]rune, width)
	for i := range rule {
		rule[i] = '━'
	}
	return lipgloss.NewStyle().Foreground(theme.Muted).Render(string(rule))
}

func RenderKeybinds(keybinds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(keybinds)*2)
	for i, kb := range keybinds {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]"), theme.Keybind.Render(" "+kb.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
