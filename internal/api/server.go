// Package api - HTTP поверхность сервиса: распознавание скриншота,
// опции товара и быстрый выбор групп.
//
// Все ответы /api/ имеют общий конверт {buildId, success, message, errorCode, error}.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ilkoid/specmatch/internal/app"
	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/store"
)

// Version - версия API в ответе корневого маршрута.
const Version = "1.0.0"

// Service - операции, которые обслуживает HTTP слой. Реализуется *app.Service.
type Service interface {
	ProductOptions(ctx context.Context, productID string) (store.Snapshot, error)
	MapSpecs(ctx context.Context, productID string, specs []recognition.RecognizedSpec, prior recognition.SelectionState) (recognition.Result, error)
	Recognize(ctx context.Context, req app.RecognizeRequest) (*app.RecognizeResult, error)
	ToggleGroup(ctx context.Context, productID, groupID string, checked bool) (catalog.Product, error)
}

// Options - настройки HTTP слоя.
type Options struct {
	BuildID        string
	MaxUploadBytes int64 // Лимит файла; тело запроса допускает ещё 1MB на поля формы
	RateLimit      int   // Запросов в минуту на IP, 0 - без лимита
	BurstLimit     int
}

// Server - HTTP обработчики поверх Service.
type Server struct {
	svc       Service
	buildID   string
	maxUpload int64
	limiter   *RateLimiter
	now       func() time.Time
}

// NewServer создаёт сервер.
func NewServer(svc Service, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 4 * 1024 * 1024
	}
	return &Server{
		svc:       svc,
		buildID:   opts.BuildID,
		maxUpload: opts.MaxUploadBytes,
		limiter:   NewRateLimiter(opts.RateLimit, opts.BurstLimit),
		now:       time.Now,
	}
}

// Limiter возвращает per-IP лимитер (nil, если лимит выключен).
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

// Routes регистрирует маршруты на mux и возвращает обработчик с middleware.
func (s *Server) Routes(mux *http.ServeMux) http.Handler {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ai/recognize", s.handleRecognize)
	mux.HandleFunc("GET /api/products/{id}/options", s.handleOptions)
	mux.HandleFunc("POST /api/products/{id}/map", s.handleMap)
	mux.HandleFunc("POST /api/products/{id}/groups/{groupId}/toggle", s.handleToggle)
	mux.HandleFunc("/api/", s.handleNotFound)

	return Chain(mux,
		s.RecoveryMiddleware,
		LoggingMiddleware,
		CORSMiddleware,
		BuildIDMiddleware(s.buildID),
		s.RateLimitMiddleware(s.limiter),
	)
}

// Handler - Routes на новом mux.
func (s *Server) Handler() http.Handler {
	return s.Routes(http.NewServeMux())
}

// StartCleanup периодически чистит лимитер до отмены ctx.
func (s *Server) StartCleanup(ctx context.Context, every time.Duration) {
	if s.limiter == nil {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.limiter.Cleanup(now)
			}
		}
	}()
}
