package recognition

import (
	"strings"

	"github.com/ilkoid/specmatch/pkg/catalog"
)

// Mapper сопоставляет распознанные пары с каталогом.
//
// Настраивается один раз (списки служебных суффиксов и названий "其他")
// и дальше используется как чистая функция.
type Mapper struct {
	stripper       suffixStripper
	otherNames     map[string]struct{}
	strictCategory bool
}

// Option - функциональная опция для NewMapper.
type Option func(*Mapper)

// WithGenericSuffixes заменяет список служебных суффиксов категорий.
func WithGenericSuffixes(words []string) Option {
	return func(m *Mapper) {
		m.stripper = newSuffixStripper(words)
	}
}

// WithOtherNames заменяет список названий опции "Другое".
func WithOtherNames(names []string) Option {
	return func(m *Mapper) {
		m.otherNames = normalizedSet(names)
	}
}

// WithStrictCategory включает/выключает срезание суффиксов при сравнении
// категорий. По умолчанию включено.
func WithStrictCategory(strict bool) Option {
	return func(m *Mapper) {
		m.strictCategory = strict
	}
}

// NewMapper создаёт Mapper с дефолтными словарями.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		stripper:       newSuffixStripper(DefaultGenericSuffixes),
		otherNames:     normalizedSet(DefaultOtherNames),
		strictCategory: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMapper = NewMapper()

// Map - Mapper.Map с дефолтными настройками.
func Map(recognized []RecognizedSpec, groups []catalog.OptionGroup, prior SelectionState) Result {
	return defaultMapper.Map(recognized, groups, prior)
}

// Map переводит распознанные пары в следующее состояние селекции.
//
// Каждая пара проверяется против каждой пары (группа, податрибут).
// Категория совпадает при двустороннем вхождении нормализованных строк.
// Для text-атрибута значение записывается как есть. Для select порядок
// разрешения строгий: точное совпадение, вхождение, опция "其他",
// и только потом - запись в TextFallback без изменения селекции.
//
// prior не модифицируется. Пары с пустой категорией или значением
// пропускаются. Map никогда не паникует на неполных данных.
func (m *Mapper) Map(recognized []RecognizedSpec, groups []catalog.OptionGroup, prior SelectionState) Result {
	res := Result{
		NextSelection: prior.Clone(),
		TextFallback:  make(TextFallbackReport),
	}

	for _, spec := range recognized {
		if strings.TrimSpace(spec.Category) == "" || strings.TrimSpace(spec.Value) == "" {
			continue
		}
		category := m.normalizeCategory(spec.Category)
		value := Normalize(spec.Value)

		for _, g := range groups {
			for _, sa := range g.SubAttributes {
				if !containsEither(m.normalizeCategory(sa.Name), category) {
					continue
				}
				m.apply(&res, KeyFor(g, sa), sa, spec.Value, value)
			}
		}
	}

	return res
}

// apply записывает результат для одного податрибута.
func (m *Mapper) apply(res *Result, key AttributeKey, sa catalog.SubAttribute, raw, value string) {
	k := key.String()

	switch sa.Type {
	case catalog.AttributeText:
		res.NextSelection[k] = raw

	case catalog.AttributeSelect:
		if len(sa.Options) == 0 {
			return
		}

		if opt, ok := m.resolve(sa.Options, value); ok {
			res.NextSelection[k] = opt.ID
			delete(res.NextSelection, key.TextFallbackKey())
			delete(res.TextFallback, k)
			return
		}

		res.TextFallback[k] = raw
		if other, ok := m.findOther(sa.Options); ok {
			res.NextSelection[k] = other.ID
			res.NextSelection[key.TextFallbackKey()] = raw
		}
	}
}

// resolve ищет опцию: сначала точное совпадение, затем первое вхождение.
func (m *Mapper) resolve(options []catalog.OptionItemRef, value string) (catalog.OptionItemRef, bool) {
	for _, opt := range options {
		if n := Normalize(opt.Name); n != "" && n == value {
			return opt, true
		}
	}
	for _, opt := range options {
		if containsEither(Normalize(opt.Name), value) {
			return opt, true
		}
	}
	return catalog.OptionItemRef{}, false
}

func (m *Mapper) findOther(options []catalog.OptionItemRef) (catalog.OptionItemRef, bool) {
	for _, opt := range options {
		if _, ok := m.otherNames[Normalize(opt.Name)]; ok {
			return opt, true
		}
	}
	return catalog.OptionItemRef{}, false
}

func (m *Mapper) normalizeCategory(s string) string {
	if m.strictCategory {
		return m.stripper.Strict(s)
	}
	return Normalize(s)
}

func normalizedSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if n := Normalize(w); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
