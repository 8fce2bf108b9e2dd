package store

import (
	"context"
	"sync"
	"time"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/utils"
)

// LoadCatalog загружает и гидратирует каталог.
//
// Никогда не возвращает ошибку: сбой загрузки логируется и даёт пустой
// каталог, который вызывающий код трактует как "опции не настроены".
func LoadCatalog(ctx context.Context, src CatalogSource) []catalog.OptionGroup {
	groups, err := loadCatalog(ctx, src)
	if err != nil {
		utils.Error("Catalog load failed, using empty catalog", "error", err)
	}
	return groups
}

func loadCatalog(ctx context.Context, src CatalogSource) ([]catalog.OptionGroup, error) {
	if src == nil {
		return []catalog.OptionGroup{}, ErrNilStorage
	}
	start := time.Now()

	rawGroups, rawItems, err := src.LoadRawCatalog(ctx)
	if err != nil {
		return []catalog.OptionGroup{}, err
	}

	groups := catalog.Hydrate(rawGroups, rawItems)
	utils.Debug("Catalog hydrated",
		"raw_groups", len(rawGroups),
		"raw_items", len(rawItems),
		"groups", len(groups),
		"duration_ms", time.Since(start).Milliseconds())
	return groups, nil
}

// Snapshot - гидратированный каталог, отфильтрованный для одного товара.
type Snapshot struct {
	Product  catalog.Product
	Groups   []catalog.OptionGroup
	LoadedAt time.Time
}

// SnapshotCache кэширует снимки по id товара.
//
// Кэш принадлежит вызывающему коду: данные не устаревают сами, их
// сбрасывают Invalidate/InvalidateAll после записи в хранилище.
// Если две загрузки одного товара идут параллельно, в кэше остаётся та,
// что завершилась последней. Загрузка, начатая до инвалидации, в кэш
// не попадает, но свой результат вызывающему отдаёт.
type SnapshotCache struct {
	source   CatalogSource
	products ProductRepository

	mu      sync.Mutex
	entries map[string]Snapshot
	epochs  map[string]uint64 // per-product счётчик инвалидаций
	global  uint64            // счётчик InvalidateAll
}

// NewSnapshotCache создаёт пустой кэш.
func NewSnapshotCache(source CatalogSource, products ProductRepository) *SnapshotCache {
	return &SnapshotCache{
		source:   source,
		products: products,
		entries:  make(map[string]Snapshot),
		epochs:   make(map[string]uint64),
	}
}

// Load возвращает снимок товара из кэша или загружает его.
//
// Ошибка возвращается только если товар не удалось прочитать. Сбой
// загрузки каталога даёт снимок с пустым списком групп, который не
// кэшируется, чтобы следующий вызов попробовал снова.
func (c *SnapshotCache) Load(ctx context.Context, productID string) (Snapshot, error) {
	if c == nil || c.products == nil {
		return Snapshot{}, ErrNilStorage
	}

	c.mu.Lock()
	if snap, ok := c.entries[productID]; ok {
		c.mu.Unlock()
		return snap, nil
	}
	startEpoch, startGlobal := c.epochs[productID], c.global
	c.mu.Unlock()

	product, err := c.products.GetProduct(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}

	groups, loadErr := loadCatalog(ctx, c.source)
	if loadErr != nil {
		utils.Error("Catalog load failed, using empty catalog", "product", productID, "error", loadErr)
	}

	snap := Snapshot{
		Product:  product,
		Groups:   catalog.FilterForProduct(groups, product),
		LoadedAt: time.Now(),
	}

	if loadErr == nil {
		c.mu.Lock()
		if c.epochs[productID] == startEpoch && c.global == startGlobal {
			c.entries[productID] = snap
		}
		c.mu.Unlock()
	}

	return snap, nil
}

// Invalidate сбрасывает снимок одного товара.
func (c *SnapshotCache) Invalidate(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, productID)
	c.epochs[productID]++
}

// InvalidateAll сбрасывает все снимки (например, после правки каталога).
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Snapshot)
	c.global++
}

// Len возвращает число закэшированных снимков.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
