package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/utils"
)

// CatalogFile - формат JSON выгрузки каталога.
//
// Порядок групп и элементов в файле становится их sort_order.
type CatalogFile struct {
	Groups   []catalog.RawOptionGroup `json:"groups"`
	Items    []catalog.RawOptionItem  `json:"items"`
	Products []catalog.Product        `json:"products"`
}

// ImportStats - сколько записей загружено.
type ImportStats struct {
	Groups   int
	Items    int
	Products int
}

// ReadCatalogFile читает выгрузку каталога с диска.
func ReadCatalogFile(path string) (CatalogFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return CatalogFile{}, fmt.Errorf("read catalog file: %w", err)
	}
	var f CatalogFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return CatalogFile{}, fmt.Errorf("%w: parse catalog file: %v", ErrInvalidInput, err)
	}
	return f, nil
}

// Import записывает выгрузку в хранилище (upsert по id).
//
// Элемент с parentId несуществующей группы - ошибка: проверка идёт до
// первой записи, поэтому битый файл не оставляет частичный импорт.
func (s *SQLiteStore) Import(ctx context.Context, f CatalogFile) (ImportStats, error) {
	known := make(map[string]struct{}, len(f.Groups))
	for _, g := range f.Groups {
		if g.ID == "" {
			return ImportStats{}, fmt.Errorf("%w: group without id", ErrInvalidInput)
		}
		known[g.ID] = struct{}{}
	}

	existing, _, err := s.LoadRawCatalog(ctx)
	if err != nil {
		return ImportStats{}, err
	}
	for _, g := range existing {
		known[g.ID] = struct{}{}
	}

	for _, it := range f.Items {
		if _, ok := known[it.ParentID]; !ok {
			return ImportStats{}, fmt.Errorf("%w: item %s references unknown group %q", ErrInvalidInput, it.ID, it.ParentID)
		}
	}

	var stats ImportStats
	for i, g := range f.Groups {
		if err := s.UpsertGroup(ctx, g, i); err != nil {
			return stats, err
		}
		stats.Groups++
	}
	for i, it := range f.Items {
		if err := s.UpsertItem(ctx, it, i); err != nil {
			return stats, err
		}
		stats.Items++
	}
	for _, p := range f.Products {
		if err := s.SaveProduct(ctx, p); err != nil {
			return stats, err
		}
		stats.Products++
	}

	utils.Info("Catalog imported", "groups", stats.Groups, "items", stats.Items, "products", stats.Products)
	return stats, nil
}
