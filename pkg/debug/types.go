// Package debug записывает трейсы вызовов vision-модели в JSON файлы.
//
// Включается флагом app.debug: каждый Recognize сохраняет отдельный файл
// с попытками, сырыми ответами модели и итогом разбора.
package debug

import "time"

// Trace - полный трейс одного распознавания.
type Trace struct {
	// RunID - идентификатор трейса (используется в имени файла)
	RunID string `json:"run_id"`

	Timestamp time.Time `json:"timestamp"`

	// Image - начало URL изображения (data URI обрезается)
	Image string `json:"image"`

	// Duration - общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	Attempts []Attempt `json:"attempts"`

	// Specs - сколько пар category/value удалось разобрать
	Specs int `json:"specs"`

	Error string `json:"error,omitempty"`
}

// Attempt - одна попытка вызова модели.
type Attempt struct {
	Number   int   `json:"attempt"`
	Duration int64 `json:"duration_ms"`

	// Response - сырой ответ модели (может быть обрезан)
	Response          string `json:"response,omitempty"`
	ResponseTruncated bool   `json:"response_truncated,omitempty"`

	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}
