// Базовые типы - определяем универсальный язык общения с моделями
package llm

// Role - роль автора сообщения.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FormatJSONObject просит модель вернуть валидный JSON-объект.
const FormatJSONObject = "json_object"

// Message - одно сообщение диалога.
type Message struct {
	Role    Role
	Content string
	// Images - data URI или http(s) ссылки; непустой список делает запрос vision-запросом.
	Images []string
}
