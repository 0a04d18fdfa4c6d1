package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
)

// Footer renders a rule followed by centered keybinding hints.
type Footer struct {
	Keybinds []Keybind
	Width    int
	theme    styles.Theme
}

func NewFooter(keybinds []Keybind) Footer {
	return Footer{Keybinds: keybinds, theme: styles.DefaultTheme()}
}

func (f Footer) WithWidth(w int) Footer {
	f.Width = w
	return f
}

func (f Footer) Render() string {
	keys := RenderKeybinds(f.Keybinds, f.theme)
	pad := (f.Width - lipgloss.Width(keys)) / 2
	if pad < 0 {
		pad = 0
	}
	line := lipgloss.NewStyle().PaddingLeft(pad).Width(f.Width).Render(keys)
	return lipgloss.JoinVertical(lipgloss.Left, Separator(f.Width, f.theme), line)
}
