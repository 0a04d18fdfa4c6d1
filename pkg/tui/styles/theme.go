package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/jobs"
)

// Theme defines the color palette and base styles for the TUI.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	TextDim   lipgloss.Color

	Border        lipgloss.Style
	BorderFocused lipgloss.Style
	Title         lipgloss.Style
	TitleMuted    lipgloss.Style
	Keybind       lipgloss.Style
	KeybindKey    lipgloss.Style
	Disabled      lipgloss.Style

	OutcomeNeutral lipgloss.Style
	OutcomeSuccess lipgloss.Style
	OutcomeError   lipgloss.Style
	LogWarning     lipgloss.Style
	LogSystem      lipgloss.Style
}

func DefaultTheme() Theme {
	primary := lipgloss.Color("#7C3AED")   // purple
	secondary := lipgloss.Color("#06B6D4") // cyan
	success := lipgloss.Color("#22C55E")
	warning := lipgloss.Color("#EAB308")
	errorC := lipgloss.Color("#EF4444")
	muted := lipgloss.Color("#6B7280")
	text := lipgloss.Color("#F9FAFB")
	textDim := lipgloss.Color("#9CA3AF")

	return Theme{
		Primary:   primary,
		Secondary: secondary,
		Success:   success,
		Warning:   warning,
		Error:     errorC,
		Muted:     muted,
		Text:      text,
		TextDim:   textDim,

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		BorderFocused: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primary),

		Title:      lipgloss.NewStyle().Bold(true).Foreground(text),
		TitleMuted: lipgloss.NewStyle().Foreground(textDim),
		Keybind:    lipgloss.NewStyle().Foreground(textDim),
		KeybindKey: lipgloss.NewStyle().Bold(true).Foreground(secondary),
		Disabled:   lipgloss.NewStyle().Foreground(muted).Italic(true),

		OutcomeNeutral: lipgloss.NewStyle().Foreground(textDim),
		OutcomeSuccess: lipgloss.NewStyle().Foreground(success),
		OutcomeError:   lipgloss.NewStyle().Foreground(errorC),
		LogWarning:     lipgloss.NewStyle().Foreground(warning),
		LogSystem:      lipgloss.NewStyle().Foreground(secondary),
	}
}

func (t Theme) Outcome(o jobs.Outcome) lipgloss.Style {
	switch o {
	case jobs.OutcomeSuccess:
		return t.OutcomeSuccess
	case jobs.OutcomeError:
		return t.OutcomeError
	default:
		return t.OutcomeNeutral
	}
}

func (t Theme) LogLevel(l jobs.LogLevel) lipgloss.Style {
	switch l {
	case jobs.LogLevelError:
		return t.OutcomeError
	case jobs.LogLevelWarning:
		return t.LogWarning
	case jobs.LogLevelSystem:
		return t.LogSystem
	default:
		return t.TitleMuted
	}
}
