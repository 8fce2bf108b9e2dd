package ui

import "github.com/charmbracelet/lipgloss"

// ColorScheme - цвета экрана проверки.
type ColorScheme struct {
	StatusBackground lipgloss.Color
	StatusForeground lipgloss.Color
	Heading          lipgloss.Color
	Label            lipgloss.Color
	Value            lipgloss.Color
	Fallback         lipgloss.Color // Поля, требующие ручной проверки
	Muted            lipgloss.Color
	Border           lipgloss.Color
}

// ColorSchemes - предустановленные схемы.
var ColorSchemes = map[string]ColorScheme{
	"default": {
		StatusBackground: lipgloss.Color("62"),
		StatusForeground: lipgloss.Color("#FFFFFF"),
		Heading:          lipgloss.Color("205"),
		Label:            lipgloss.Color("252"),
		Value:            lipgloss.Color("#04B575"),
		Fallback:         lipgloss.Color("214"),
		Muted:            lipgloss.Color("242"),
		Border:           lipgloss.Color("240"),
	},
	"light": {
		StatusBackground: lipgloss.Color("255"),
		StatusForeground: lipgloss.Color("0"),
		Heading:          lipgloss.Color("130"),
		Label:            lipgloss.Color("0"),
		Value:            lipgloss.Color("28"),
		Fallback:         lipgloss.Color("160"),
		Muted:            lipgloss.Color("8"),
		Border:           lipgloss.Color("8"),
	},
	"dracula": {
		StatusBackground: lipgloss.Color("#282a36"),
		StatusForeground: lipgloss.Color("#f8f8f2"),
		Heading:          lipgloss.Color("#ff79c6"),
		Label:            lipgloss.Color("#f8f8f2"),
		Value:            lipgloss.Color("#50fa7b"),
		Fallback:         lipgloss.Color("#ffb86c"),
		Muted:            lipgloss.Color("#6272a4"),
		Border:           lipgloss.Color("#44475a"),
	},
}

// GetColorScheme возвращает схему по имени, при отсутствии - default.
func GetColorScheme(name string) ColorScheme {
	if scheme, ok := ColorSchemes[name]; ok {
		return scheme
	}
	return ColorSchemes["default"]
}

// styles - готовые lipgloss стили для схемы.
type styles struct {
	status   lipgloss.Style
	heading  lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	fallback lipgloss.Style
	muted    lipgloss.Style
	border   lipgloss.Style
}

func newStyles(c ColorScheme) styles {
	return styles{
		status:   lipgloss.NewStyle().Background(c.StatusBackground).Foreground(c.StatusForeground).Bold(true).Padding(0, 1),
		heading:  lipgloss.NewStyle().Foreground(c.Heading).Bold(true),
		label:    lipgloss.NewStyle().Foreground(c.Label),
		value:    lipgloss.NewStyle().Foreground(c.Value),
		fallback: lipgloss.NewStyle().Foreground(c.Fallback).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(c.Muted),
		border:   lipgloss.NewStyle().Foreground(c.Border),
	}
}
