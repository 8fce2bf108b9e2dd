// Package utils предоставляет вспомогательные функции: логгер, очистку
// ответов LLM и подготовку изображений.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Vision-модели часто возвращают JSON обёрнутым в кодовый блок:
//
//	```json
//	{"specs": []}
//	```
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	for _, fence := range []string{"```json", "```JSON", "```Json", "```"} {
		if strings.HasPrefix(s, fence) {
			s = strings.TrimPrefix(s, fence)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// ExtractJSON находит первое JSON-значение (объект или массив) в тексте.
//
// Учитывает вложенность скобок и строковые литералы, поэтому скобки
// внутри значений ("型號[A]") не ломают разбор. Возвращает пустую
// строку, если ни '{', ни '[' не найдено. Если значение не закрыто,
// возвращается хвост начиная с открывающей скобки: пусть json.Unmarshal
// сообщит об ошибке.
func ExtractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}
