// Package catalog описывает каталог опций витрины: группы опций, их
// податрибуты и элементы, а также правила совместимости по тегам.
//
// Пакет не выполняет I/O. Данные приходят из хранилища (pkg/store)
// в "сыром" виде и приводятся к нормализованному виду через Hydrate.
package catalog

// Типы податрибутов.
const (
	AttributeSelect = "select" // Закрытый список опций
	AttributeText   = "text"   // Свободный текст
)

// UIConfig - настройки отображения группы.
type UIConfig struct {
	// Step - этап выбора (>= 1). Первый этап использует отдельное
	// пространство ключей селекции, см. recognition.AttributeKey.
	Step int `json:"step"`
}

// OptionItemRef - опция внутри податрибута типа select.
type OptionItemRef struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceModifier int    `json:"priceModifier"`
	ColorHex      string `json:"colorHex,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

// SubAttribute - грань группы ("外框", "按鍵顏色").
type SubAttribute struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`              // AttributeSelect | AttributeText
	Options []OptionItemRef `json:"options,omitempty"` // Только для select
}

// RawOptionGroup - группа в том виде, в каком её хранит каталог.
type RawOptionGroup struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name"`

	// PriceModifier - nil означает "не задан". Ноль - валидное значение,
	// и для группы без элементов из него синтезируется self-элемент.
	PriceModifier *int `json:"priceModifier,omitempty"`

	Thumbnail     string         `json:"thumbnail,omitempty"`
	SubAttributes []SubAttribute `json:"subAttributes,omitempty"`
	UIConfig      UIConfig       `json:"uiConfig"`
	MatchingTags  []string       `json:"matchingTags,omitempty"`
}

// RawOptionItem - элемент верхнего уровня, хранится отдельно от групп.
type RawOptionItem struct {
	ID            string   `json:"id"`
	ParentID      string   `json:"parentId"`
	Name          string   `json:"name"`
	PriceModifier int      `json:"priceModifier"`
	RequiredTags  []string `json:"requiredTags,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	ColorHex      string   `json:"colorHex,omitempty"`
}

// OptionItem - выбираемый элемент гидратированной группы.
type OptionItem struct {
	ID            string   `json:"id"`
	ParentID      string   `json:"parentId"`
	Name          string   `json:"name"`
	PriceModifier int      `json:"priceModifier"`
	RequiredTags  []string `json:"requiredTags,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	ColorHex      string   `json:"colorHex,omitempty"`

	// Virtual - элемент синтезирован из самой группы ("{group.id}__self").
	Virtual bool `json:"virtual,omitempty"`
}

// OptionGroup - гидратированная группа. Items пуст только у группы без
// элементов и без PriceModifier (только SubAttributes).
type OptionGroup struct {
	RawOptionGroup
	Items []OptionItem `json:"items"`
}

// Key возвращает ключ группы для селекции: code, а если его нет - id.
func (g OptionGroup) Key() string {
	if g.Code != "" {
		return g.Code
	}
	return g.ID
}

// Product - товар с тегами совместимости.
type Product struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	CompatibilityTags []string `json:"compatibilityTags"`

	// LinkedGroupIDs - группы, явно привязанные к товару оператором
	// (quick select). Привязанная группа показывается независимо от тегов.
	LinkedGroupIDs []string `json:"linkedGroupIds,omitempty"`
}

// IsLinked сообщает, привязана ли группа к товару явно.
func (p Product) IsLinked(groupID string) bool {
	for _, id := range p.LinkedGroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}
