// Package recognition превращает распознанные vision-моделью пары
// (категория, значение) в конкретную селекцию внутри каталога опций.
//
// Всё в пакете - чистые функции над неизменяемыми снимками: ни I/O,
// ни глобального состояния. Mapper можно вызывать конкурентно.
package recognition

// RecognizedSpec - одна пара, извлечённая из скриншота.
// Может быть шумной, дублироваться или ссылаться на несуществующую категорию.
type RecognizedSpec struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// SelectionState - attributeKey -> id опции или литеральный текст.
type SelectionState map[string]string

// TextFallbackReport - attributeKey -> исходный распознанный текст,
// для которого не нашлось уверенного совпадения.
type TextFallbackReport map[string]string

// Result - результат одного вызова Map.
type Result struct {
	NextSelection SelectionState     `json:"selection"`
	TextFallback  TextFallbackReport `json:"textFallback"`
}

// Clone возвращает независимую копию селекции. nil превращается в пустую map.
func (s SelectionState) Clone() SelectionState {
	out := make(SelectionState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
