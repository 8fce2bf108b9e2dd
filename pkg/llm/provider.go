// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider - контракт для любого AI-сервиса.
//
// Бизнес-логика работает только через этот интерфейс, в тестах его
// подменяют фейком.
type Provider interface {
	// Generate отправляет историю сообщений и возвращает ответ модели.
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)
}
