package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/specmatch/pkg/recognition"
)

// ReviewModel - Bubble Tea модель экрана проверки.
//
// Контент перерисовывается при изменении ширины окна, чтобы перенос
// строк соответствовал терминалу.
type ReviewModel struct {
	report       Report
	scheme       ColorScheme
	styles       styles
	keys         KeyMap
	help         help.Model
	viewport     viewport.Model
	fallbackOnly bool
	ready        bool
}

// Option - функция для кастомизации ReviewModel.
type Option func(*ReviewModel)

// WithColorScheme задаёт цветовую схему.
func WithColorScheme(scheme ColorScheme) Option {
	return func(m *ReviewModel) {
		m.scheme = scheme
		m.styles = newStyles(scheme)
	}
}

// NewReviewModel создаёт модель для отчёта.
func NewReviewModel(r Report, opts ...Option) ReviewModel {
	m := ReviewModel{
		report:   r,
		scheme:   GetColorScheme("default"),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: viewport.New(0, 0),
	}
	m.styles = newStyles(m.scheme)
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init реализует tea.Model.
func (m ReviewModel) Init() tea.Cmd {
	return nil
}

// Update реализует tea.Model.
func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 2 // граница + help
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.help.Width = msg.Width
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleHelp):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.FallbackOnly):
			m.fallbackOnly = !m.fallbackOnly
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp):
			m.viewport.ScrollUp(1)
			return m, nil
		case key.Matches(msg, m.keys.ScrollDown):
			m.viewport.ScrollDown(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh перерисовывает контент под текущую ширину.
func (m *ReviewModel) refresh() {
	r := m.report
	if m.fallbackOnly {
		r = fallbackOnly(r)
	}
	m.viewport.SetContent(RenderReport(r, m.scheme, m.viewport.Width))
	m.viewport.GotoTop()
}

// fallbackOnly оставляет в отчёте только поля, требующие проверки.
func fallbackOnly(r Report) Report {
	out := r
	out.Recognized = nil
	out.Selection = make(recognition.SelectionState)
	for _, l := range r.SelectionLines() {
		if !l.Fallback {
			continue
		}
		out.Selection[l.Key] = r.Selection[l.Key]
		if key, err := recognition.ParseAttributeKey(l.Key); err == nil {
			if text, ok := r.Selection[key.TextFallbackKey()]; ok {
				out.Selection[key.TextFallbackKey()] = text
			}
		}
	}
	return out
}

// View реализует tea.Model.
func (m ReviewModel) View() string {
	if !m.ready {
		return "Initializing UI..."
	}

	mode := "all"
	if m.fallbackOnly {
		mode = "fallback"
	}
	status := fmt.Sprintf(" %s | fallback: %d | view: %s ",
		m.report.ProductID, len(m.report.TextFallback), mode)

	header := m.styles.status.Width(m.viewport.Width).Render(status)
	border := m.styles.border.Render(strings.Repeat("─", max(m.viewport.Width, 1)))

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), border, m.help.View(m.keys))
}

// Run показывает экран проверки до выхода пользователя или отмены ctx.
func Run(ctx context.Context, r Report, opts ...Option) error {
	p := tea.NewProgram(NewReviewModel(r, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
