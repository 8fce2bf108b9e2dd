package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const imagePreviewSize = 96

// RecorderConfig - настройки Recorder.
type RecorderConfig struct {
	// LogsDir - директория для трейсов; создаётся при необходимости
	LogsDir string

	// MaxResponseSize - лимит сырого ответа, 0 - без ограничений
	MaxResponseSize int
}

// Recorder накапливает трейс одного распознавания.
//
// Потокобезопасен. Методы nil-получателя ничего не делают, поэтому
// вызывающий код не проверяет, включена ли отладка.
type Recorder struct {
	mu     sync.Mutex
	config RecorderConfig
	trace  Trace
}

// NewRecorder создаёт Recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	now := time.Now()
	return &Recorder{
		config: cfg,
		trace: Trace{
			RunID:     fmt.Sprintf("vision_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8]),
			Timestamp: now,
		},
	}, nil
}

// Start запоминает изображение.
func (r *Recorder) Start(image string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.Image = truncate(image, imagePreviewSize)
}

// RecordAttempt добавляет попытку вызова модели.
func (r *Recorder) RecordAttempt(a Attempt) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit := r.config.MaxResponseSize; limit > 0 && len(a.Response) > limit {
		a.Response = truncate(a.Response, limit)
		a.ResponseTruncated = true
	}
	r.trace.Attempts = append(r.trace.Attempts, a)
}

// Finalize сохраняет трейс и возвращает путь к файлу.
func (r *Recorder) Finalize(specs int, runErr error, duration time.Duration) (string, error) {
	if r == nil {
		return "", nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.Specs = specs
	r.trace.Duration = duration.Milliseconds()
	if runErr != nil {
		r.trace.Error = runErr.Error()
	}

	data, err := json.MarshalIndent(r.trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	path := filepath.Join(r.config.LogsDir, r.trace.RunID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	return path, nil
}

// RunID возвращает идентификатор трейса.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace.RunID
}

// truncate обрезает строку по байтам, не разрывая UTF-8 символ.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
