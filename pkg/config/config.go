package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig - корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models          ModelsConfig    `yaml:"models"`
	Vision          VisionConfig    `yaml:"vision"`
	S3              S3Config        `yaml:"s3"`
	ImageProcessing ImageProcConfig `yaml:"image_processing"`
	Catalog         CatalogConfig   `yaml:"catalog"`
	Server          ServerConfig    `yaml:"server"`
	Matching        MatchingConfig  `yaml:"matching"`
	App             AppSpecific     `yaml:"app"`
}

// ModelsConfig - настройки AI моделей.
type ModelsConfig struct {
	DefaultVision string              `yaml:"default_vision"` // Алиас по умолчанию (например, "gpt-4o-mini")
	Definitions   map[string]ModelDef `yaml:"definitions"`    // Словарь определений моделей
}

// ModelDef - параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "openai", "zai" и т.д.
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // Для OpenAI-совместимых провайдеров
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// VisionConfig - ограничения на вызовы vision-модели.
type VisionConfig struct {
	RateLimit     int    `yaml:"rate_limit"`     // Запросов в минуту
	BurstLimit    int    `yaml:"burst_limit"`    // Burst для rate limiter
	RetryAttempts int    `yaml:"retry_attempts"` // Количество попыток
	PromptFile    string `yaml:"prompt_file"`    // Необязательный файл с системным промптом
}

// S3Config - настройки объектного хранилища скриншотов.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"` // Префикс ключей, например "screenshots/"
}

// Enabled сообщает, настроено ли хранилище. Без S3 скриншоты не сохраняются.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// ImageProcConfig - настройки предобработки изображений.
type ImageProcConfig struct {
	MaxDimension   int    `yaml:"max_dimension"`    // Длинная сторона после ресайза
	Format         string `yaml:"format"`           // "png" или "jpeg"
	Quality        int    `yaml:"quality"`          // Качество JPEG
	MaxUploadBytes int64  `yaml:"max_upload_bytes"` // Лимит размера загрузки
}

// CatalogConfig - настройки хранилища каталога.
type CatalogConfig struct {
	DBPath string `yaml:"db_path"`
}

// ServerConfig - настройки HTTP сервера.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	BuildID    string `yaml:"build_id"`
	RateLimit  int    `yaml:"rate_limit"`  // Запросов в минуту на IP, 0 - без лимита
	BurstLimit int    `yaml:"burst_limit"` // Burst на IP
	MCPEnabled bool   `yaml:"mcp_enabled"`
}

// MatchingConfig - словари сопоставления распознанных значений.
type MatchingConfig struct {
	GenericSuffixes []string `yaml:"generic_suffixes"`
	OtherNames      []string `yaml:"other_names"`
	StrictCategory  *bool    `yaml:"strict_category"` // nil - по умолчанию true
}

// AppSpecific - общие настройки приложения.
type AppSpecific struct {
	Debug     bool   `yaml:"debug"`     // Писать JSON трейсы vision-вызовов
	DebugDir  string `yaml:"debug_dir"` // Куда писать трейсы, по умолчанию debug_logs
	LogPrefix string `yaml:"log_prefix"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Перед подстановкой загружается .env из текущей директории (если он есть),
// чтобы ключи API можно было держать вне config.yaml.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. .env не обязателен, но битый .env - ошибка
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает содержимое config.yaml с подстановкой ${VAR}.
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults заполняет незаданные поля.
func (c *AppConfig) applyDefaults() {
	c.Vision = c.Vision.GetDefaults()
	c.ImageProcessing = c.ImageProcessing.GetDefaults()
	c.Server = c.Server.GetDefaults()

	if c.Catalog.DBPath == "" {
		c.Catalog.DBPath = "catalog.db"
	}
	if c.App.LogPrefix == "" {
		c.App.LogPrefix = "specmatch"
	}
	if c.App.DebugDir == "" {
		c.App.DebugDir = "debug_logs"
	}
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c VisionConfig) GetDefaults() VisionConfig {
	result := c
	if result.RateLimit == 0 {
		result.RateLimit = 30 // запросов в минуту
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 3
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = 2
	}
	return result
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c ImageProcConfig) GetDefaults() ImageProcConfig {
	result := c
	if result.MaxDimension == 0 {
		result.MaxDimension = 2048
	}
	if result.Format == "" {
		result.Format = "png"
	}
	if result.Quality == 0 {
		result.Quality = 85
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = 4 * 1024 * 1024 // 4MB
	}
	return result
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c ServerConfig) GetDefaults() ServerConfig {
	result := c
	if result.Port == 0 {
		result.Port = 3002
	}
	if result.BuildID == "" {
		result.BuildID = fmt.Sprintf("specmatch-%d-%d", result.Port, time.Now().Unix())
	}
	if result.RateLimit > 0 && result.BurstLimit == 0 {
		result.BurstLimit = 10
	}
	return result
}

// IsStrictCategory возвращает режим сравнения категорий.
func (c MatchingConfig) IsStrictCategory() bool {
	return c.StrictCategory == nil || *c.StrictCategory
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if (c.S3.Endpoint == "") != (c.S3.Bucket == "") {
		return fmt.Errorf("s3.endpoint and s3.bucket must be set together")
	}
	if c.Models.DefaultVision != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultVision]; !ok {
			return fmt.Errorf("default_vision model '%s' is not defined in definitions", c.Models.DefaultVision)
		}
	}
	switch c.ImageProcessing.Format {
	case "png", "jpeg":
	default:
		return fmt.Errorf("image_processing.format must be png or jpeg, got '%s'", c.ImageProcessing.Format)
	}
	if c.ImageProcessing.Quality < 1 || c.ImageProcessing.Quality > 100 {
		return fmt.Errorf("image_processing.quality must be in 1..100, got %d", c.ImageProcessing.Quality)
	}
	return nil
}

// GetVisionModel возвращает конфигурацию модели по умолчанию или по имени.
func (c *AppConfig) GetVisionModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultVision
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}
