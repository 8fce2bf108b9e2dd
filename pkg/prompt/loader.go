// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/ilkoid/specmatch/pkg/llm"
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

// Load загружает и парсит YAML файл промпта.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	return Parse(data)
}

// Parse разбирает YAML промпта и проверяет роли и шаблоны.
func Parse(data []byte) (*File, error) {
	var pf File
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Validate проверяет наличие сообщений, роли и синтаксис шаблонов.
func (pf *File) Validate() error {
	if len(pf.Messages) == 0 {
		return errors.New("prompt has no messages")
	}

	for i, msg := range pf.Messages {
		switch llm.Role(msg.Role) {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			return fmt.Errorf("message #%d: unknown role %q", i, msg.Role)
		}
		if _, err := template.New("msg").Funcs(funcs).Parse(msg.Content); err != nil {
			return fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}
	}
	return nil
}

// RenderMessages подставляет data во все сообщения.
func (pf *File) RenderMessages(data any) ([]llm.Message, error) {
	rendered := make([]llm.Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		tmpl, err := template.New("msg").Funcs(funcs).Parse(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("template execute error in message #%d: %w", i, err)
		}

		rendered[i] = llm.Message{
			Role:    llm.Role(msg.Role),
			Content: strings.TrimSpace(buf.String()),
		}
	}

	return rendered, nil
}

// GenerateOptions превращает config промпта в runtime-опции модели.
func (pf *File) GenerateOptions() []llm.GenerateOption {
	var opts []llm.GenerateOption
	if pf.Config.Model != "" {
		opts = append(opts, llm.WithModel(pf.Config.Model))
	}
	if pf.Config.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*pf.Config.Temperature))
	}
	if pf.Config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(pf.Config.MaxTokens))
	}
	if pf.Config.Format != "" {
		opts = append(opts, llm.WithFormat(pf.Config.Format))
	}
	return opts
}
