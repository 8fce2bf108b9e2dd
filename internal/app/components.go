package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/specmatch/pkg/config"
	llmopenai "github.com/ilkoid/specmatch/pkg/llm/openai"
	"github.com/ilkoid/specmatch/pkg/s3storage"
	"github.com/ilkoid/specmatch/pkg/store"
	"github.com/ilkoid/specmatch/pkg/utils"
	"github.com/ilkoid/specmatch/pkg/vision"
)

// Components - собранные компоненты приложения.
type Components struct {
	Config  *config.AppConfig
	Store   *store.SQLiteStore
	Service *Service
}

// Close освобождает ресурсы.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	return c.Store.Close()
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг -config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага -config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return resolveAbsPath("config.yaml")
	}

	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), "config.yaml")
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	// Возвращаем дефолтный путь (даже если не существует)
	return resolveAbsPath("config.yaml")
}

// InitializeConfig инициализирует и загружает конфигурацию.
// Настройки лежат в YAML с поддержкой ${VAR}.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// Initialize создаёт и связывает все компоненты приложения.
//
// Vision и S3 необязательны: без default_vision распознавание недоступно,
// без секции s3 скриншоты не сохраняются.
func Initialize(cfg *config.AppConfig) (*Components, error) {
	utils.Info("Initializing components", "db", cfg.Catalog.DBPath)

	// 1. Хранилище каталога
	st, err := store.Open(cfg.Catalog.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}

	deps := Deps{Source: st, Products: st}

	// 2. S3 (опционально)
	if cfg.S3.Enabled() {
		s3Client, err := s3storage.New(cfg.S3)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		deps.Uploader = s3Client
		utils.Info("S3 client initialized", "bucket", cfg.S3.Bucket)
	} else {
		utils.Info("S3 not configured, screenshots will not be stored")
	}

	// 3. Vision (опционально)
	if modelDef, ok := cfg.GetVisionModel(""); ok {
		var opts []vision.Option
		if cfg.App.Debug {
			opts = append(opts, vision.WithTraceDir(cfg.App.DebugDir))
			utils.Info("Vision traces enabled", "dir", cfg.App.DebugDir)
		}
		recognizer, err := vision.New(llmopenai.NewClient(modelDef), cfg.Vision, opts...)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create recognizer: %w", err)
		}
		deps.Recognizer = recognizer
		utils.Info("Vision model configured", "provider", modelDef.Provider, "model", modelDef.ModelName)
	} else {
		utils.Warn("No default vision model, recognition disabled")
	}

	svc, err := NewService(deps, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Components{Config: cfg, Store: st, Service: svc}, nil
}

func resolveAbsPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
