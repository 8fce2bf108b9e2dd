// Package vision распознаёт спецификации чехла на скриншоте чужого заказа.
//
// Recognizer отправляет изображение в vision-модель через llm.Provider,
// ограничивает частоту вызовов и повторяет запрос при временных сбоях.
// Разбор ответа делегируется recognition.ParseVisionResponse.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilkoid/specmatch/pkg/config"
	"github.com/ilkoid/specmatch/pkg/debug"
	"github.com/ilkoid/specmatch/pkg/llm"
	"github.com/ilkoid/specmatch/pkg/prompt"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/utils"
	"golang.org/x/time/rate"
)

// DefaultSystemPrompt просит модель вернуть объектную форму ответа.
const DefaultSystemPrompt = `你是手機殼訂單截圖的規格辨識助手。
請閱讀圖片中的訂單或商品頁面，找出手機型號、殼款名稱，以及每一項客製化規格。
只回傳 JSON 物件，不要任何說明文字，格式如下：
{"phoneName": "手機型號", "caseName": "殼款名稱", "specs": [{"category": "規格類別", "value": "規格內容"}]}
規則：
- category 使用截圖上的原文標籤，例如「外框顏色」、「鏡頭框」、「按鍵」。
- value 使用截圖上的原文內容，不要翻譯或改寫。
- 看不清楚的欄位直接省略，不要猜測。
- 沒有任何規格時回傳 {"phoneName": "", "caseName": "", "specs": []}。`

// DefaultUserPrompt сопровождает изображение.
const DefaultUserPrompt = "請辨識這張截圖中的手機殼規格。"

// categoryHint дописывается к системному промпту, если известны атрибуты товара.
const categoryHint = `{{if .Categories}}

此商品可用的規格類別：{{join .Categories "、"}}。category 盡量對應這些名稱。{{end}}`

// DefaultPrompt - встроенный промпт: системное сообщение с подсказкой категорий
// и пользовательское сообщение, к которому прикрепляется изображение.
func DefaultPrompt() *prompt.File {
	return &prompt.File{Messages: []prompt.Message{
		{Role: string(llm.RoleSystem), Content: DefaultSystemPrompt + categoryHint},
		{Role: string(llm.RoleUser), Content: DefaultUserPrompt},
	}}
}

// Recognizer превращает изображение в список RecognizedSpec.
type Recognizer struct {
	provider      llm.Provider
	limiter       *rate.Limiter
	retryAttempts int
	backoff       time.Duration
	prompt        *prompt.File
	genOpts       []llm.GenerateOption
	traceDir      string // Пусто - трейсы не пишутся
}

// Option настраивает Recognizer.
type Option func(*Recognizer)

// WithBackoff задаёт базовую паузу между попытками (растёт линейно).
func WithBackoff(d time.Duration) Option {
	return func(r *Recognizer) {
		r.backoff = d
	}
}

// WithTraceDir включает запись JSON трейсов каждого распознавания в dir.
func WithTraceDir(dir string) Option {
	return func(r *Recognizer) {
		r.traceDir = dir
	}
}

// New создаёт Recognizer.
//
// prompt_file в формате .yaml/.yml - полноценный промпт (config + messages),
// любой другой файл - текст системного промпта.
// rate_limit задаётся в запросах в минуту; 0 отключает ограничение.
func New(provider llm.Provider, cfg config.VisionConfig, opts ...Option) (*Recognizer, error) {
	if provider == nil {
		return nil, errors.New("vision: provider is nil")
	}

	pf, err := loadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / 60.0)
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = 1
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	r := &Recognizer{
		provider:      provider,
		limiter:       rate.NewLimiter(limit, burst),
		retryAttempts: attempts,
		backoff:       time.Second,
		prompt:        pf,
		genOpts:       append([]llm.GenerateOption{llm.WithFormat(llm.FormatJSONObject)}, pf.GenerateOptions()...),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Recognize отправляет изображение (data URI или URL) в модель и разбирает ответ.
// categories - названия атрибутов каталога, подсказка для модели.
//
// Временные ошибки (rate limit, сеть, таймаут, неразборчивый ответ)
// повторяются до retry_attempts раз. Ошибки авторизации возвращаются сразу.
// Все ошибки имеют тип *Error.
func (r *Recognizer) Recognize(ctx context.Context, imageURL string, categories ...string) (recognition.VisionResult, error) {
	if imageURL == "" {
		return recognition.VisionResult{}, &Error{Type: ErrUnknown, Err: errors.New("empty image url")}
	}

	messages, err := r.messages(imageURL, categories)
	if err != nil {
		return recognition.VisionResult{}, &Error{Type: ErrUnknown, Err: err}
	}

	trace := r.newTrace(imageURL)
	begin := time.Now()

	res, verr := r.recognize(ctx, messages, trace)

	if trace != nil {
		var runErr error
		if verr != nil {
			runErr = verr
		}
		if path, ferr := trace.Finalize(len(res.Specs), runErr, time.Since(begin)); ferr != nil {
			utils.Warn("Vision trace not saved", "error", ferr)
		} else {
			utils.Debug("Vision trace saved", "path", path)
		}
	}
	if verr != nil {
		return recognition.VisionResult{}, verr
	}
	return res, nil
}

// messages рендерит промпт и прикрепляет изображение к последнему user-сообщению.
func (r *Recognizer) messages(imageURL string, categories []string) ([]llm.Message, error) {
	msgs, err := r.prompt.RenderMessages(prompt.VisionData{Categories: categories})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			msgs[i].Images = []string{imageURL}
			return msgs, nil
		}
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: DefaultUserPrompt, Images: []string{imageURL}}), nil
}

// loadPrompt читает prompt_file; пустой путь - встроенный промпт.
func loadPrompt(path string) (*prompt.File, error) {
	if path == "" {
		return DefaultPrompt(), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		pf, err := prompt.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load prompt file: %w", err)
		}
		return pf, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	pf := DefaultPrompt()
	if text := strings.TrimSpace(string(raw)); text != "" {
		pf.Messages[0].Content = text + categoryHint
	}
	if err := pf.Validate(); err != nil {
		return nil, fmt.Errorf("prompt file %s: %w", path, err)
	}
	return pf, nil
}

// recognize - цикл попыток с лимитером и линейным backoff.
func (r *Recognizer) recognize(ctx context.Context, messages []llm.Message, trace *debug.Recorder) (recognition.VisionResult, *Error) {
	var lastErr *Error
	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return recognition.VisionResult{}, &Error{Type: ErrTimeout, Err: fmt.Errorf("rate limiter wait: %w", err)}
		}

		start := time.Now()
		res, content, err := r.once(ctx, messages)

		rec := debug.Attempt{Number: attempt, Duration: time.Since(start).Milliseconds(), Response: content}
		if err != nil {
			rec.ErrorType, rec.Error = err.Type.String(), err.Err.Error()
		}
		trace.RecordAttempt(rec)

		if err == nil {
			utils.Info("Vision recognition finished",
				"attempt", attempt,
				"specs", len(res.Specs),
				"duration_ms", time.Since(start).Milliseconds())
			return res, nil
		}

		lastErr = err
		utils.Warn("Vision recognition attempt failed",
			"attempt", attempt,
			"type", err.Type.String(),
			"error", err.Err)

		if !err.Type.Retryable() || ctx.Err() != nil {
			break
		}
		if attempt < r.retryAttempts {
			select {
			case <-ctx.Done():
				return recognition.VisionResult{}, &Error{Type: ErrTimeout, Err: ctx.Err()}
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
	}

	return recognition.VisionResult{}, lastErr
}

// newTrace создаёт рекордер, если включены трейсы. Сбой не мешает распознаванию.
func (r *Recognizer) newTrace(imageURL string) *debug.Recorder {
	if r.traceDir == "" {
		return nil
	}
	rec, err := debug.NewRecorder(debug.RecorderConfig{LogsDir: r.traceDir, MaxResponseSize: 16 * 1024})
	if err != nil {
		utils.Warn("Vision trace disabled", "error", err)
		return nil
	}
	rec.Start(imageURL)
	return rec
}

// once - один вызов модели; возвращает также сырой ответ для трейса.
func (r *Recognizer) once(ctx context.Context, messages []llm.Message) (recognition.VisionResult, string, *Error) {
	msg, err := r.provider.Generate(ctx, messages, r.genOpts...)
	if err != nil {
		return recognition.VisionResult{}, "", &Error{Type: Classify(err), Err: err}
	}

	res, err := recognition.ParseVisionResponse(msg.Content)
	if err != nil {
		return recognition.VisionResult{}, msg.Content, &Error{Type: ErrBadResponse, Err: err}
	}
	return res, msg.Content, nil
}
