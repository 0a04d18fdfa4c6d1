package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders a horizontal bar with a percentage. Values outside
// 0..100 are clamped and non-finite values render as 0%.
type ProgressBar struct {
	percent    float64
	width      int
	style      lipgloss.Style
	filledChar rune
	emptyChar  rune
	showText   bool
}

func NewProgressBar(percent float64) ProgressBar {
	return ProgressBar{
		percent:    Clamp(percent),
		width:      20,
		filledChar: '█',
		emptyChar:  '░',
		showText:   true,
	}
}

// Clamp bounds p to 0..100.
func Clamp(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func (p ProgressBar) WithWidth(width int) ProgressBar {
	if width < 5 {
		width = 5
	}
	p.width = width
	return p
}

func (p ProgressBar) WithStyle(style lipgloss.Style) ProgressBar {
	p.style = style
	return p
}

func (p ProgressBar) WithShowText(show bool) ProgressBar {
	p.showText = show
	return p
}

func (p ProgressBar) Percent() float64 { return p.percent }

func (p ProgressBar) Render() string {
	filled := int(math.Round(float64(p.width) * p.percent / 100))
	empty := p.width - filled

	bar := p.style.Render(strings.Repeat(string(p.filledChar), filled)) +
		strings.Repeat(string(p.emptyChar), empty)

	if p.showText {
		return fmt.Sprintf("%s %3.0f%%", bar, p.percent)
	}
	return bar
}
