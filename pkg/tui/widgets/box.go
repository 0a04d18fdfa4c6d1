package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
)

// Box renders a bordered panel with a title on the left and a hint on the
// right of the first line.
type Box struct {
	Title      string
	TitleRight string
	Content    string
	Width      int
	Height     int
	Focused    bool
	theme      styles.Theme
}

func NewBox(title string) Box {
	return Box{Title: title, theme: styles.DefaultTheme()}
}

func (b Box) WithContent(content string) Box {
	b.Content = content
	return b
}

func (b Box) WithTitleRight(text string) Box {
	b.TitleRight = text
	return b
}

func (b Box) WithSize(width, height int) Box {
	b.Width, b.Height = width, height
	return b
}

func (b Box) WithFocus(focused bool) Box {
	b.Focused = focused
	return b
}

func (b Box) Render() string {
	innerWidth := b.Width - 2
	if innerWidth < 0 {
		innerWidth = 0
	}

	content := b.Content
	if b.Title != "" || b.TitleRight != "" {
		left := b.theme.Title.Render(b.Title)
		right := b.theme.TitleMuted.Render(b.TitleRight)
		gap := innerWidth - lipgloss.Width(left) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
		header := lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(gap).Render(""), right)
		content = header + "\n" + content
	}

	style := b.theme.Border
	if b.Focused {
		style = b.theme.BorderFocused
	}
	if b.Width > 0 {
		style = style.Width(innerWidth)
	}
	if b.Height > 2 {
		style = style.Height(b.Height - 2)
	}
	return style.Render(content)
}
