package catalog

import "sort"

// TagSet - множество тегов. Порядок и дубликаты не имеют значения.
type TagSet map[string]struct{}

// NewTagSet строит множество из списка. Пустые строки игнорируются.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Has проверяет наличие тега.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted возвращает теги в отсортированном порядке.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsEligible - предикат совместимости опции с товаром.
//
// Опция без тегов универсальна и доступна любому товару. Иначе каждый
// тег опции обязан присутствовать у товара (optionTags ⊆ productTags).
func IsEligible(optionTags, productTags TagSet) bool {
	for t := range optionTags {
		if !productTags.Has(t) {
			return false
		}
	}
	return true
}

// EligibleFor - IsEligible для "сырых" списков тегов.
func EligibleFor(optionTags, productTags []string) bool {
	return IsEligible(NewTagSet(optionTags...), NewTagSet(productTags...))
}

// FilterForProduct оставляет группы и элементы, доступные товару.
//
// Группа проходит, если она явно привязана к товару или её MatchingTags
// совместимы с тегами товара. Внутри группы элементы фильтруются по
// RequiredTags (кроме self-элемента явно привязанной группы). Группа, у
// которой фильтр убрал все элементы, отбрасывается. Группа без элементов
// изначально (только SubAttributes) проходит по одним MatchingTags.
func FilterForProduct(groups []OptionGroup, p Product) []OptionGroup {
	productTags := NewTagSet(p.CompatibilityTags...)
	out := make([]OptionGroup, 0, len(groups))

	for _, g := range groups {
		linked := p.IsLinked(g.ID)
		if !linked && !IsEligible(NewTagSet(g.MatchingTags...), productTags) {
			continue
		}

		items := make([]OptionItem, 0, len(g.Items))
		for _, it := range g.Items {
			// Self-элемент привязанной группы - это сама группа.
			if (linked && it.Virtual) || IsEligible(NewTagSet(it.RequiredTags...), productTags) {
				items = append(items, it)
			}
		}
		if len(items) == 0 && len(g.Items) > 0 {
			continue
		}

		g.Items = items
		out = append(out, g)
	}

	return out
}

// TagLedger ведёт учёт тегов товара при включении/выключении групп
// в quick select.
//
// Каждый тег, пришедший от группы, помнит своих владельцев. Выключение
// группы снимает тег только когда ни одна другая включённая группа его
// не требует. Базовые теги (заданные вручную) не снимаются никогда.
type TagLedger struct {
	base   TagSet
	owners map[string]map[string]struct{} // tag -> group ids
	groups map[string][]string            // включённые группы -> их теги
}

// NewTagLedger восстанавливает учёт по текущему состоянию товара.
//
// checked - группы, которые сейчас включены у товара. Теги товара, не
// принадлежащие ни одной включённой группе, считаются базовыми.
func NewTagLedger(productTags []string, checked []RawOptionGroup) *TagLedger {
	l := &TagLedger{
		base:   make(TagSet),
		owners: make(map[string]map[string]struct{}),
		groups: make(map[string][]string),
	}

	for _, g := range checked {
		l.Check(g.ID, g.MatchingTags)
	}
	for _, t := range productTags {
		if t == "" {
			continue
		}
		if _, owned := l.owners[t]; !owned {
			l.base[t] = struct{}{}
		}
	}

	return l
}

// Check включает группу: её теги объединяются с тегами товара.
// Повторный Check той же группы заменяет её набор тегов.
func (l *TagLedger) Check(groupID string, tags []string) {
	if _, ok := l.groups[groupID]; ok {
		l.Uncheck(groupID)
	}

	set := NewTagSet(tags...)
	l.groups[groupID] = set.Sorted()
	for t := range set {
		if l.owners[t] == nil {
			l.owners[t] = make(map[string]struct{})
		}
		l.owners[t][groupID] = struct{}{}
	}
}

// Uncheck выключает группу. Тег исчезает, только если у него не осталось
// владельцев и он не базовый.
func (l *TagLedger) Uncheck(groupID string) {
	tags, ok := l.groups[groupID]
	if !ok {
		return
	}
	delete(l.groups, groupID)

	for _, t := range tags {
		delete(l.owners[t], groupID)
		if len(l.owners[t]) == 0 {
			delete(l.owners, t)
		}
	}
}

// Checked сообщает, включена ли группа.
func (l *TagLedger) Checked(groupID string) bool {
	_, ok := l.groups[groupID]
	return ok
}

// CheckedGroups возвращает id включённых групп (отсортированы).
func (l *TagLedger) CheckedGroups() []string {
	out := make([]string, 0, len(l.groups))
	for id := range l.groups {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Tags возвращает итоговый набор тегов товара (отсортирован).
func (l *TagLedger) Tags() []string {
	set := make(TagSet, len(l.base)+len(l.owners))
	for t := range l.base {
		set[t] = struct{}{}
	}
	for t := range l.owners {
		set[t] = struct{}{}
	}
	return set.Sorted()
}
