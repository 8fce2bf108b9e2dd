// Структуры данных - описывает формат YAML файла промпта.
package prompt

// File описывает структуру YAML-файла с промптом.
//
//	config:
//	  temperature: 0.1
//	  format: json_object
//	messages:
//	  - role: system
//	    content: "..."
//	  - role: user
//	    content: "{{if .Categories}}類別：{{join .Categories \"、\"}}{{end}}"
type File struct {
	Config   Config    `yaml:"config"`
	Messages []Message `yaml:"messages"`
}

// Config - настройки модели для конкретного промпта. Пустые поля не
// переопределяют настройки модели из config.yaml.
type Config struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Format      string   `yaml:"format"` // "json_object" или пусто
}

// Message - одно сообщение в чате.
type Message struct {
	Role    string `yaml:"role"`    // system, user, assistant
	Content string `yaml:"content"` // Шаблон text/template
}

// VisionData - данные для шаблонов vision-промпта.
type VisionData struct {
	// Categories - названия атрибутов каталога, которые стоит искать на скриншоте
	Categories []string
}
