// Package ui - терминальный экран проверки результата распознавания.
//
// Поля, которые не удалось сопоставить с опциями каталога (text fallback),
// выделяются отдельным цветом: их нужно проверить вручную.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muesli/reflow/wrap"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/recognition"
)

// Report - данные для экрана проверки.
type Report struct {
	ProductID    string                         `json:"productId"`
	ProductName  string                         `json:"productName,omitempty"`
	PhoneName    string                         `json:"phoneName"`
	CaseName     string                         `json:"caseName"`
	ImageURL     string                         `json:"url,omitempty"`
	Recognized   []recognition.RecognizedSpec   `json:"recognized"`
	Selection    recognition.SelectionState     `json:"selection"`
	TextFallback recognition.TextFallbackReport `json:"textFallback"`
	Groups       []catalog.OptionGroup          `json:"-"` // Для подписей вместо сырых id
}

// Line - одна строка раздела селекции.
type Line struct {
	Key      string
	Label    string // "Группа / Атрибут" или сырой ключ
	Value    string // Имя опции или текст
	Fallback bool   // Значение требует ручной проверки
}

// SelectionLines раскладывает селекцию в строки, отсортированные по ключу.
// Соседние ключи *_text_fallback сворачиваются в строку своего атрибута.
func (r Report) SelectionLines() []Line {
	keys := make([]string, 0, len(r.Selection))
	for k := range r.Selection {
		if recognition.IsTextFallbackKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]Line, 0, len(keys))
	for _, k := range keys {
		line := Line{Key: k, Label: k, Value: r.Selection[k]}

		if key, err := recognition.ParseAttributeKey(k); err == nil {
			if g, sa, ok := findAttribute(r.Groups, key); ok {
				line.Label = g.Name + " / " + sa.Name
				if sa.Type == catalog.AttributeSelect {
					line.Value = optionName(sa, line.Value)
				}
			}
			if text, ok := r.Selection[key.TextFallbackKey()]; ok {
				line.Value = fmt.Sprintf("%s: %s", line.Value, text)
				line.Fallback = true
			}
		}
		if _, ok := r.TextFallback[k]; ok {
			line.Fallback = true
		}

		lines = append(lines, line)
	}
	return lines
}

// FallbackKeys - отсортированные ключи полей без совпадения.
func (r Report) FallbackKeys() []string {
	keys := make([]string, 0, len(r.TextFallback))
	for k := range r.TextFallback {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func findAttribute(groups []catalog.OptionGroup, key recognition.AttributeKey) (catalog.OptionGroup, catalog.SubAttribute, bool) {
	for _, g := range groups {
		if g.Key() != key.GroupKey || recognition.TierForStep(g.UIConfig.Step) != key.Tier {
			continue
		}
		for _, sa := range g.SubAttributes {
			if sa.ID == key.AttributeID {
				return g, sa, true
			}
		}
	}
	return catalog.OptionGroup{}, catalog.SubAttribute{}, false
}

func optionName(sa catalog.SubAttribute, id string) string {
	for _, o := range sa.Options {
		if o.ID == id {
			return fmt.Sprintf("%s (%s)", o.Name, o.ID)
		}
	}
	return id
}

// RenderReport печатает отчёт. width <= 0 - без переноса строк.
func RenderReport(r Report, scheme ColorScheme, width int) string {
	st := newStyles(scheme)
	var b strings.Builder

	writeLine := func(s string) {
		if width > 0 {
			s = wrap.String(s, width)
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}

	title := r.ProductID
	if r.ProductName != "" {
		title = fmt.Sprintf("%s (%s)", r.ProductName, r.ProductID)
	}
	if title == "" {
		title = "весь каталог"
	}
	writeLine(st.heading.Render("Товар:") + " " + title)
	if r.PhoneName != "" || r.CaseName != "" {
		writeLine(st.label.Render("Телефон:") + " " + r.PhoneName + "  " + st.label.Render("Чехол:") + " " + r.CaseName)
	}
	if r.ImageURL != "" {
		writeLine(st.muted.Render("Скриншот: " + r.ImageURL))
	}

	writeLine("")
	writeLine(st.heading.Render(fmt.Sprintf("Распознано (%d)", len(r.Recognized))))
	if len(r.Recognized) == 0 {
		writeLine(st.muted.Render("  ничего не распознано"))
	}
	for _, s := range r.Recognized {
		writeLine("  " + st.label.Render(s.Category+":") + " " + s.Value)
	}

	lines := r.SelectionLines()
	writeLine("")
	writeLine(st.heading.Render(fmt.Sprintf("Селекция (%d)", len(lines))))
	for _, l := range lines {
		if l.Fallback {
			writeLine(st.fallback.Render("! " + l.Label + ": " + l.Value))
			continue
		}
		writeLine("  " + st.label.Render(l.Label+":") + " " + st.value.Render(l.Value))
	}

	fallback := r.FallbackKeys()
	if len(fallback) > 0 {
		writeLine("")
		writeLine(st.fallback.Render(fmt.Sprintf("Требует проверки (%d)", len(fallback))))
		for _, k := range fallback {
			writeLine(st.fallback.Render("! " + k + " = " + r.TextFallback[k]))
		}
	}

	return b.String()
}
