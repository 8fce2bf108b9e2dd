package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/utils"
)

// CatalogSource - сырой каталог для гидратации.
type CatalogSource interface {
	LoadRawCatalog(ctx context.Context) ([]catalog.RawOptionGroup, []catalog.RawOptionItem, error)
}

// ProductRepository - чтение и запись товаров.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	SaveProduct(ctx context.Context, p catalog.Product) error
}

// SQLiteStore реализует CatalogSource и ProductRepository поверх SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ CatalogSource     = (*SQLiteStore)(nil)
	_ ProductRepository = (*SQLiteStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS option_groups (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	price_modifier INTEGER,
	thumbnail TEXT NOT NULL DEFAULT '',
	step INTEGER NOT NULL DEFAULT 1,
	matching_tags TEXT NOT NULL DEFAULT '[]',
	sub_attributes TEXT NOT NULL DEFAULT '[]',
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS option_items (
	id TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	price_modifier INTEGER NOT NULL DEFAULT 0,
	required_tags TEXT NOT NULL DEFAULT '[]',
	image_url TEXT NOT NULL DEFAULT '',
	color_hex TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (parent_id) REFERENCES option_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	compatibility_tags TEXT NOT NULL DEFAULT '[]',
	linked_groups TEXT NOT NULL DEFAULT '[]',
	date_modified DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_option_items_parent ON option_items(parent_id);
CREATE INDEX IF NOT EXISTS idx_option_groups_sort ON option_groups(sort_order);
`

// Open открывает (или создаёт) базу и применяет схему.
//
// WAL и busy_timeout задаются в DSN, чтобы действовать на все соединения пула.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty db path", ErrInvalidInput)
	}

	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite пишет из одного соединения
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	utils.Info("Catalog store opened", "path", path)
	return &SQLiteStore{db: db}, nil
}

// Close закрывает соединение.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadRawCatalog возвращает группы и элементы в порядке sort_order,
// при равенстве - в порядке вставки.
func (s *SQLiteStore) LoadRawCatalog(ctx context.Context) ([]catalog.RawOptionGroup, []catalog.RawOptionItem, error) {
	if s == nil || s.db == nil {
		return nil, nil, ErrNilStorage
	}

	groups, err := s.loadGroups(ctx)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, nil, err
	}
	return groups, items, nil
}

func (s *SQLiteStore) loadGroups(ctx context.Context) ([]catalog.RawOptionGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, price_modifier, thumbnail, step, matching_tags, sub_attributes
		FROM option_groups ORDER BY sort_order, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query option groups: %w", err)
	}
	defer rows.Close()

	groups := []catalog.RawOptionGroup{}
	for rows.Next() {
		var (
			g         catalog.RawOptionGroup
			price     sql.NullInt64
			tagsJSON  string
			attrsJSON string
		)
		if err := rows.Scan(&g.ID, &g.Code, &g.Name, &price, &g.Thumbnail, &g.UIConfig.Step, &tagsJSON, &attrsJSON); err != nil {
			return nil, fmt.Errorf("scan option group: %w", err)
		}
		if price.Valid {
			v := int(price.Int64)
			g.PriceModifier = &v
		}
		if err := json.Unmarshal([]byte(tagsJSON), &g.MatchingTags); err != nil {
			return nil, fmt.Errorf("decode matching tags of %s: %w", g.ID, err)
		}
		if err := json.Unmarshal([]byte(attrsJSON), &g.SubAttributes); err != nil {
			return nil, fmt.Errorf("decode sub attributes of %s: %w", g.ID, err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLiteStore) loadItems(ctx context.Context) ([]catalog.RawOptionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, name, price_modifier, required_tags, image_url, color_hex
		FROM option_items ORDER BY sort_order, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query option items: %w", err)
	}
	defer rows.Close()

	items := []catalog.RawOptionItem{}
	for rows.Next() {
		var (
			it       catalog.RawOptionItem
			tagsJSON string
		)
		if err := rows.Scan(&it.ID, &it.ParentID, &it.Name, &it.PriceModifier, &tagsJSON, &it.ImageURL, &it.ColorHex); err != nil {
			return nil, fmt.Errorf("scan option item: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &it.RequiredTags); err != nil {
			return nil, fmt.Errorf("decode required tags of %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertGroup создаёт или обновляет группу. sortOrder задаёт порядок в каталоге.
func (s *SQLiteStore) UpsertGroup(ctx context.Context, g catalog.RawOptionGroup, sortOrder int) error {
	if s == nil || s.db == nil {
		return ErrNilStorage
	}
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("%w: group id is empty", ErrInvalidInput)
	}

	tags, err := marshalList(uniqueStrings(g.MatchingTags))
	if err != nil {
		return err
	}
	attrs, err := marshalList(g.SubAttributes)
	if err != nil {
		return err
	}
	var price sql.NullInt64
	if g.PriceModifier != nil {
		price = sql.NullInt64{Int64: int64(*g.PriceModifier), Valid: true}
	}
	step := g.UIConfig.Step
	if step == 0 {
		step = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO option_groups (id, code, name, price_modifier, thumbnail, step, matching_tags, sub_attributes, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			price_modifier = excluded.price_modifier,
			thumbnail = excluded.thumbnail,
			step = excluded.step,
			matching_tags = excluded.matching_tags,
			sub_attributes = excluded.sub_attributes,
			sort_order = excluded.sort_order
	`, g.ID, g.Code, g.Name, price, g.Thumbnail, step, tags, attrs, sortOrder)
	if err != nil {
		return fmt.Errorf("upsert group %s: %w", g.ID, err)
	}
	return nil
}

// UpsertItem создаёт или обновляет элемент группы.
func (s *SQLiteStore) UpsertItem(ctx context.Context, it catalog.RawOptionItem, sortOrder int) error {
	if s == nil || s.db == nil {
		return ErrNilStorage
	}
	if strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.ParentID) == "" {
		return fmt.Errorf("%w: item id and parent id are required", ErrInvalidInput)
	}

	tags, err := marshalList(uniqueStrings(it.RequiredTags))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO option_items (id, parent_id, name, price_modifier, required_tags, image_url, color_hex, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			price_modifier = excluded.price_modifier,
			required_tags = excluded.required_tags,
			image_url = excluded.image_url,
			color_hex = excluded.color_hex,
			sort_order = excluded.sort_order
	`, it.ID, it.ParentID, it.Name, it.PriceModifier, tags, it.ImageURL, it.ColorHex, sortOrder)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", it.ID, err)
	}
	return nil
}

// DeleteGroup удаляет группу вместе с её элементами.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrNilStorage
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM option_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return WrapNotFound("group", id)
	}
	return nil
}

// GetProduct возвращает товар по id.
func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	if s == nil || s.db == nil {
		return catalog.Product{}, ErrNilStorage
	}

	var (
		p          catalog.Product
		tagsJSON   string
		linkedJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, compatibility_tags, linked_groups FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &tagsJSON, &linkedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, WrapNotFound("product", id)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("query product %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &p.CompatibilityTags); err != nil {
		return catalog.Product{}, fmt.Errorf("decode tags of product %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(linkedJSON), &p.LinkedGroupIDs); err != nil {
		return catalog.Product{}, fmt.Errorf("decode linked groups of product %s: %w", id, err)
	}
	if p.CompatibilityTags == nil {
		p.CompatibilityTags = []string{}
	}
	return p, nil
}

// SaveProduct создаёт или обновляет товар. Теги сохраняются как множество.
func (s *SQLiteStore) SaveProduct(ctx context.Context, p catalog.Product) error {
	if s == nil || s.db == nil {
		return ErrNilStorage
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: product id is empty", ErrInvalidInput)
	}

	tags, err := marshalList(uniqueStrings(p.CompatibilityTags))
	if err != nil {
		return err
	}
	linked, err := marshalList(uniqueStrings(p.LinkedGroupIDs))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, compatibility_tags, linked_groups, date_modified)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			compatibility_tags = excluded.compatibility_tags,
			linked_groups = excluded.linked_groups,
			date_modified = CURRENT_TIMESTAMP
	`, p.ID, p.Name, tags, linked)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

// ListProducts возвращает все товары, отсортированные по id.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStorage
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// marshalList кодирует срез в JSON, nil превращается в "[]".
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

// uniqueStrings убирает пустые строки и дубликаты, сохраняя порядок.
func uniqueStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
