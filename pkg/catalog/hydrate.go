package catalog

// SelfItemSuffix - суффикс id синтезированного элемента группы.
const SelfItemSuffix = "__self"

// SelfItemID возвращает id виртуального элемента для группы.
func SelfItemID(groupID string) string {
	return groupID + SelfItemSuffix
}

// Hydrate собирает нормализованный каталог из сырых групп и элементов.
//
// Элементы распределяются по группам через ParentID с сохранением порядка
// хранилища. Группа без элементов, но с заданным PriceModifier (включая 0)
// получает ровно один виртуальный элемент "{group.id}__self", наследующий
// имя, цену, миниатюру и MatchingTags группы. Группа с элементами никогда
// не получает self-элемент.
//
// Группа без элементов и без PriceModifier остаётся в каталоге с пустым
// (не nil) списком Items: её настройка целиком в SubAttributes, и mapper
// должен её видеть. Пустой вход даёт пустой (не nil) каталог.
func Hydrate(groups []RawOptionGroup, items []RawOptionItem) []OptionGroup {
	children := make(map[string][]OptionItem, len(groups))
	for _, it := range items {
		if it.ParentID == "" {
			continue
		}
		children[it.ParentID] = append(children[it.ParentID], OptionItem{
			ID:            it.ID,
			ParentID:      it.ParentID,
			Name:          it.Name,
			PriceModifier: it.PriceModifier,
			RequiredTags:  copyStrings(it.RequiredTags),
			ImageURL:      it.ImageURL,
			ColorHex:      it.ColorHex,
			Virtual:       it.ID == SelfItemID(it.ParentID),
		})
	}

	out := make([]OptionGroup, 0, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			continue
		}

		own := children[g.ID]
		switch {
		case len(own) > 0:
			out = append(out, OptionGroup{RawOptionGroup: g, Items: own})
		case g.PriceModifier != nil:
			out = append(out, OptionGroup{RawOptionGroup: g, Items: []OptionItem{selfItem(g)}})
		default:
			out = append(out, OptionGroup{RawOptionGroup: g, Items: []OptionItem{}})
		}
	}

	return out
}

// Flatten раскладывает гидратированный каталог обратно в сырые списки.
// Виртуальные элементы попадают в список как обычные дочерние элементы,
// поэтому Hydrate(Flatten(c)) == c.
func Flatten(groups []OptionGroup) ([]RawOptionGroup, []RawOptionItem) {
	rawGroups := make([]RawOptionGroup, 0, len(groups))
	var rawItems []RawOptionItem

	for _, g := range groups {
		rawGroups = append(rawGroups, g.RawOptionGroup)
		for _, it := range g.Items {
			rawItems = append(rawItems, RawOptionItem{
				ID:            it.ID,
				ParentID:      it.ParentID,
				Name:          it.Name,
				PriceModifier: it.PriceModifier,
				RequiredTags:  copyStrings(it.RequiredTags),
				ImageURL:      it.ImageURL,
				ColorHex:      it.ColorHex,
			})
		}
	}

	return rawGroups, rawItems
}

func selfItem(g RawOptionGroup) OptionItem {
	return OptionItem{
		ID:            SelfItemID(g.ID),
		ParentID:      g.ID,
		Name:          g.Name,
		PriceModifier: *g.PriceModifier,
		RequiredTags:  copyStrings(g.MatchingTags),
		ImageURL:      g.Thumbnail,
		Virtual:       true,
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
