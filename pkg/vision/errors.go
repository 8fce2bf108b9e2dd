package vision

import (
	"context"
	"errors"
	"net"
	"net/http"

	llmopenai "github.com/ilkoid/specmatch/pkg/llm/openai"
)

// ErrorType - класс ошибки вызова vision-модели.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrBadResponse
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "auth"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network"
	case ErrRateLimit:
		return "rate_limit"
	case ErrBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrAuthFailed:
		return "API ключ vision-модели недействителен или отсутствует."
	case ErrTimeout:
		return "Vision-модель не ответила вовремя."
	case ErrNetwork:
		return "Vision-сервис недоступен. Проверьте подключение."
	case ErrRateLimit:
		return "Превышен лимит запросов к vision-модели. Повторите позже."
	case ErrBadResponse:
		return "Vision-модель вернула ответ, который не удалось разобрать."
	default:
		return "Неизвестная ошибка при распознавании изображения."
	}
}

// Retryable сообщает, имеет ли смысл повторить запрос.
func (e ErrorType) Retryable() bool {
	switch e {
	case ErrTimeout, ErrNetwork, ErrRateLimit, ErrBadResponse:
		return true
	default:
		return false
	}
}

// Error - классифицированная ошибка распознавания.
type Error struct {
	Type ErrorType
	Err  error
}

func (e *Error) Error() string {
	return "vision " + e.Type.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Classify определяет тип ошибки по статусу HTTP и сетевым признакам.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	var verr *Error
	if errors.As(err, &verr) {
		return verr.Type
	}

	switch llmopenai.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetwork
	}

	return ErrUnknown
}
