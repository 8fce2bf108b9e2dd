package recognition

import (
	"fmt"
	"strings"

	"github.com/ilkoid/specmatch/pkg/catalog"
)

// Tier - ярус ключа селекции.
type Tier int

const (
	// TierFirstStage - группы первого этапа (uiConfig.step == 1).
	TierFirstStage Tier = iota + 1
	// TierChildStage - все остальные этапы, ключ с инфиксом ":ca:".
	TierChildStage
)

const (
	childInfix     = ":ca:"
	fallbackSuffix = "_text_fallback"
)

// AttributeKey - структурированный ключ селекции.
//
// Строковая форма - контракт с хранилищем селекций и UI:
//
//	first stage: "{groupKey}:{attributeId}"
//	child stage: "{groupKey}:ca:{attributeId}"
//
// Собирать строку руками не нужно: используйте KeyFor и String.
type AttributeKey struct {
	Tier        Tier
	GroupKey    string
	AttributeID string
}

// TierForStep возвращает ярус для этапа группы.
func TierForStep(step int) Tier {
	if step == 1 {
		return TierFirstStage
	}
	return TierChildStage
}

// KeyFor строит ключ для пары (группа, податрибут).
func KeyFor(g catalog.OptionGroup, sa catalog.SubAttribute) AttributeKey {
	return AttributeKey{
		Tier:        TierForStep(g.UIConfig.Step),
		GroupKey:    g.Key(),
		AttributeID: sa.ID,
	}
}

// String сериализует ключ.
func (k AttributeKey) String() string {
	if k.Tier == TierFirstStage {
		return k.GroupKey + ":" + k.AttributeID
	}
	return k.GroupKey + childInfix + k.AttributeID
}

// TextFallbackKey - соседний ключ с текстом для выбранной опции "其他".
func (k AttributeKey) TextFallbackKey() string {
	return k.String() + fallbackSuffix
}

// IsTextFallbackKey сообщает, является ли строка соседним ключом текста.
func IsTextFallbackKey(s string) bool {
	return strings.HasSuffix(s, fallbackSuffix)
}

// ParseAttributeKey разбирает строковую форму ключа.
func ParseAttributeKey(s string) (AttributeKey, error) {
	if groupKey, attrID, ok := strings.Cut(s, childInfix); ok {
		if groupKey == "" || attrID == "" {
			return AttributeKey{}, fmt.Errorf("malformed attribute key %q", s)
		}
		return AttributeKey{Tier: TierChildStage, GroupKey: groupKey, AttributeID: attrID}, nil
	}

	groupKey, attrID, ok := strings.Cut(s, ":")
	if !ok || groupKey == "" || attrID == "" {
		return AttributeKey{}, fmt.Errorf("malformed attribute key %q", s)
	}
	return AttributeKey{Tier: TierFirstStage, GroupKey: groupKey, AttributeID: attrID}, nil
}
