// Package app связывает хранилище каталога, vision-распознавание и маппер
// в операции приложения: опции товара, распознавание скриншота и быстрый
// выбор групп.
//
// С внешними сервисами пакет работает только через интерфейсы.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/config"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/s3storage"
	"github.com/ilkoid/specmatch/pkg/store"
	"github.com/ilkoid/specmatch/pkg/utils"
)

// Ошибки уровня приложения. HTTP и MCP слои отображают их в коды ответа.
var (
	// ErrNoImage - не передан ни файл, ни ссылка на изображение.
	ErrNoImage = errors.New("image or imageUrl is required")

	// ErrImageTooLarge - файл превышает image_processing.max_upload_bytes.
	ErrImageTooLarge = errors.New("image exceeds upload limit")

	// ErrBadImageURL - ссылка на изображение не http(s) и не data URI.
	ErrBadImageURL = errors.New("imageUrl must be http(s) or data URI")

	// ErrBadImage - изображение не удалось декодировать.
	ErrBadImage = errors.New("cannot decode image")

	// ErrImageFetch - не удалось скачать изображение по ссылке.
	ErrImageFetch = errors.New("cannot fetch image")
)

// Recognizer - vision-шаг. Реализуется *vision.Recognizer.
type Recognizer interface {
	Recognize(ctx context.Context, imageURL string, categories ...string) (recognition.VisionResult, error)
}

// Uploader - сохранение скриншотов. Реализуется *s3storage.Client.
type Uploader interface {
	s3storage.ClientInterface
	NewKey(contentType string) string
}

// RecognizeRequest - входные данные распознавания.
type RecognizeRequest struct {
	ProductID string                     // Пусто - сопоставлять со всем каталогом
	Image     []byte                     // Загруженный файл
	ImageURL  string                     // Альтернатива файлу
	Selection recognition.SelectionState // Текущая селекция клиента
}

// RecognizeResult - итог распознавания и сопоставления.
type RecognizeResult struct {
	Recognized   []recognition.RecognizedSpec   `json:"recognized"`
	PhoneName    string                         `json:"phoneName"`
	CaseName     string                         `json:"caseName"`
	Selection    recognition.SelectionState     `json:"selection"`
	TextFallback recognition.TextFallbackReport `json:"textFallback"`
	URL          string                         `json:"url,omitempty"` // Ссылка на сохранённый скриншот
}

// Service - операции приложения.
type Service struct {
	source     store.CatalogSource
	products   store.ProductRepository
	cache      *store.SnapshotCache
	recognizer Recognizer
	uploader   Uploader // nil - скриншоты не сохраняются
	fetcher    ImageFetcher
	mapper     *recognition.Mapper
	imgCfg     config.ImageProcConfig
	urlTTL     time.Duration
}

// Deps - зависимости Service.
type Deps struct {
	Source     store.CatalogSource
	Products   store.ProductRepository
	Recognizer Recognizer
	Uploader   Uploader
	Fetcher    ImageFetcher // nil - HTTPFetcher с таймаутом 15s
}

// NewService создаёт сервис. Recognizer и Uploader могут быть nil:
// без первого недоступно распознавание, без второго скриншоты не сохраняются.
func NewService(deps Deps, cfg *config.AppConfig) (*Service, error) {
	if deps.Source == nil || deps.Products == nil {
		return nil, fmt.Errorf("%w: catalog source and product repository are required", store.ErrNilStorage)
	}
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(15 * time.Second)
	}

	return &Service{
		source:     deps.Source,
		products:   deps.Products,
		cache:      store.NewSnapshotCache(deps.Source, deps.Products),
		recognizer: deps.Recognizer,
		uploader:   deps.Uploader,
		fetcher:    fetcher,
		mapper:     NewMapper(cfg.Matching),
		imgCfg:     cfg.ImageProcessing.GetDefaults(),
		urlTTL:     24 * time.Hour,
	}, nil
}

// NewMapper строит Mapper по секции matching конфигурации.
func NewMapper(cfg config.MatchingConfig) *recognition.Mapper {
	opts := []recognition.Option{recognition.WithStrictCategory(cfg.IsStrictCategory())}
	if len(cfg.GenericSuffixes) > 0 {
		opts = append(opts, recognition.WithGenericSuffixes(cfg.GenericSuffixes))
	}
	if len(cfg.OtherNames) > 0 {
		opts = append(opts, recognition.WithOtherNames(cfg.OtherNames))
	}
	return recognition.NewMapper(opts...)
}

// ProductOptions возвращает гидратированные группы, доступные товару.
func (s *Service) ProductOptions(ctx context.Context, productID string) (store.Snapshot, error) {
	return s.cache.Load(ctx, productID)
}

// Catalog возвращает весь гидратированный каталог без фильтра по товару.
func (s *Service) Catalog(ctx context.Context) []catalog.OptionGroup {
	return store.LoadCatalog(ctx, s.source)
}

// groupsFor возвращает группы товара или весь каталог, если товар не указан.
func (s *Service) groupsFor(ctx context.Context, productID string) ([]catalog.OptionGroup, error) {
	if productID == "" {
		return s.Catalog(ctx), nil
	}
	snap, err := s.cache.Load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return snap.Groups, nil
}

// MapSpecs сопоставляет уже распознанные пары с каталогом товара.
func (s *Service) MapSpecs(ctx context.Context, productID string, specs []recognition.RecognizedSpec, prior recognition.SelectionState) (recognition.Result, error) {
	groups, err := s.groupsFor(ctx, productID)
	if err != nil {
		return recognition.Result{}, err
	}
	return s.mapper.Map(specs, groups, prior), nil
}

// Recognize: проверка размера -> ресайз -> (S3) -> vision -> сопоставление.
//
// Сбой сохранения в S3 не прерывает распознавание: он только логируется.
func (s *Service) Recognize(ctx context.Context, req RecognizeRequest) (*RecognizeResult, error) {
	if s.recognizer == nil {
		return nil, errors.New("vision recognizer is not configured")
	}
	start := time.Now()

	imageURL, storedURL, err := s.prepareImage(ctx, req)
	if err != nil {
		return nil, err
	}

	// Каталог грузим до вызова модели: неизвестный товар не должен тратить лимит vision.
	groups, err := s.groupsFor(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	vr, err := s.recognizer.Recognize(ctx, imageURL, categoryNames(groups)...)
	if err != nil {
		return nil, err
	}

	res := s.mapper.Map(vr.Specs, groups, req.Selection)

	utils.Info("Screenshot recognized",
		"product", req.ProductID,
		"specs", len(vr.Specs),
		"selected", len(res.NextSelection),
		"fallback", len(res.TextFallback),
		"duration_ms", time.Since(start).Milliseconds())

	return &RecognizeResult{
		Recognized:   vr.Specs,
		PhoneName:    vr.PhoneName,
		CaseName:     vr.CaseName,
		Selection:    res.NextSelection,
		TextFallback: res.TextFallback,
		URL:          storedURL,
	}, nil
}

// categoryNames - уникальные названия атрибутов в порядке каталога.
func categoryNames(groups []catalog.OptionGroup) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, g := range groups {
		for _, attr := range g.SubAttributes {
			name := strings.TrimSpace(attr.Name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// prepareImage возвращает URL для модели и ссылку на сохранённую копию.
//
// Файл и http(s)-ссылка проходят одинаковую предобработку; data URI
// передаётся модели как есть.
func (s *Service) prepareImage(ctx context.Context, req RecognizeRequest) (string, string, error) {
	raw := req.Image
	if len(raw) == 0 {
		u := strings.TrimSpace(req.ImageURL)
		switch {
		case u == "":
			return "", "", ErrNoImage
		case strings.HasPrefix(u, "data:image/"):
			return u, "", nil
		case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
			data, err := s.fetcher.Fetch(ctx, u, s.imgCfg.MaxUploadBytes)
			if err != nil {
				return "", "", fmt.Errorf("%w: %w", ErrImageFetch, err)
			}
			raw = data
		default:
			return "", "", ErrBadImageURL
		}
	}

	if s.imgCfg.MaxUploadBytes > 0 && int64(len(raw)) > s.imgCfg.MaxUploadBytes {
		return "", "", fmt.Errorf("%w: %d > %d bytes", ErrImageTooLarge, len(raw), s.imgCfg.MaxUploadBytes)
	}

	data, mime, err := utils.FitImage(raw, s.imgCfg.MaxDimension, s.imgCfg.Format, s.imgCfg.Quality)
	if err != nil {
		return "", "", fmt.Errorf("preprocess image: %w: %w", ErrBadImage, err)
	}

	return utils.DataURI(mime, data), s.store(ctx, data, mime), nil
}

// store сохраняет скриншот и возвращает временную ссылку (или пустую строку).
func (s *Service) store(ctx context.Context, data []byte, mime string) string {
	if s.uploader == nil {
		return ""
	}

	obj, err := s.uploader.Upload(ctx, s.uploader.NewKey(mime), data, mime)
	if err != nil {
		utils.Warn("Screenshot upload failed, continuing without it", "error", err)
		return ""
	}
	u, err := s.uploader.PresignedURL(ctx, obj.Key, s.urlTTL)
	if err != nil {
		utils.Warn("Screenshot presign failed", "key", obj.Key, "error", err)
		return ""
	}
	return u
}

// ToggleGroup отмечает или снимает группу в быстром выборе товара.
//
// Отметка объединяет теги группы с тегами товара. Снятие удаляет только
// те теги, которыми не владеет ни одна другая отмеченная группа; теги,
// заданные товару вручную, не удаляются никогда.
func (s *Service) ToggleGroup(ctx context.Context, productID, groupID string, checked bool) (catalog.Product, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return catalog.Product{}, err
	}

	rawGroups, _, err := s.source.LoadRawCatalog(ctx)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("load catalog: %w", err)
	}
	byID := make(map[string]catalog.RawOptionGroup, len(rawGroups))
	for _, g := range rawGroups {
		byID[g.ID] = g
	}

	target, ok := byID[groupID]
	if !ok {
		return catalog.Product{}, store.WrapNotFound("group", groupID)
	}

	var linked []catalog.RawOptionGroup
	for _, id := range product.LinkedGroupIDs {
		if g, ok := byID[id]; ok {
			linked = append(linked, g)
		}
	}

	ledger := catalog.NewTagLedger(product.CompatibilityTags, linked)
	if checked {
		ledger.Check(target.ID, target.MatchingTags)
	} else {
		ledger.Uncheck(target.ID)
	}

	product.CompatibilityTags = ledger.Tags()
	product.LinkedGroupIDs = ledger.CheckedGroups()

	if err := s.products.SaveProduct(ctx, product); err != nil {
		return catalog.Product{}, err
	}
	s.cache.Invalidate(productID)

	utils.Info("Product group toggled",
		"product", productID,
		"group", groupID,
		"checked", checked,
		"tags", len(product.CompatibilityTags))

	return product, nil
}

// InvalidateCatalog сбрасывает все снимки после правки каталога.
func (s *Service) InvalidateCatalog() {
	s.cache.InvalidateAll()
}
