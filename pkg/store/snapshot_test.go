package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	groups []catalog.RawOptionGroup
	items  []catalog.RawOptionItem
	err    error
	calls  int
	// onLoad вызывается внутри загрузки, до возврата результата
	onLoad func(call int)
}

func (f *fakeSource) LoadRawCatalog(context.Context) ([]catalog.RawOptionGroup, []catalog.RawOptionItem, error) {
	f.calls++
	call := f.calls
	if f.onLoad != nil {
		f.onLoad(call)
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.groups, f.items, nil
}

type fakeProducts struct {
	products map[string]catalog.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, WrapNotFound("product", id)
	}
	return p, nil
}

func (f *fakeProducts) SaveProduct(_ context.Context, p catalog.Product) error {
	f.products[p.ID] = p
	return nil
}

func testFixture() (*fakeSource, *fakeProducts) {
	src := &fakeSource{
		groups: []catalog.RawOptionGroup{
			{ID: "g_all", Name: "通用", PriceModifier: intPtr(0)},
			{ID: "g_15", Name: "iPhone 15 限定", PriceModifier: intPtr(10), MatchingTags: []string{"iphone15"}},
		},
	}
	products := &fakeProducts{products: map[string]catalog.Product{
		"p_14": {ID: "p_14", CompatibilityTags: []string{"iphone14"}},
		"p_15": {ID: "p_15", CompatibilityTags: []string{"iphone15"}},
	}}
	return src, products
}

func TestLoadCatalog_FailureYieldsEmpty(t *testing.T) {
	groups := LoadCatalog(context.Background(), &fakeSource{err: errors.New("db down")})
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	assert.Empty(t, LoadCatalog(context.Background(), nil))
}

func TestSnapshotCache_FiltersAndCaches(t *testing.T) {
	src, products := testFixture()
	cache := NewSnapshotCache(src, products)

	snap, err := cache.Load(context.Background(), "p_14")
	require.NoError(t, err)
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, "g_all", snap.Groups[0].ID)

	_, err = cache.Load(context.Background(), "p_14")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	snap, err = cache.Load(context.Background(), "p_15")
	require.NoError(t, err)
	assert.Len(t, snap.Groups, 2)
	assert.Equal(t, 2, cache.Len())
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	src, products := testFixture()
	cache := NewSnapshotCache(src, products)
	ctx := context.Background()

	_, _ = cache.Load(ctx, "p_14")
	_, _ = cache.Load(ctx, "p_15")

	cache.Invalidate("p_14")
	assert.Equal(t, 1, cache.Len())

	products.products["p_14"] = catalog.Product{ID: "p_14", CompatibilityTags: []string{"iphone15"}}
	snap, err := cache.Load(ctx, "p_14")
	require.NoError(t, err)
	assert.Len(t, snap.Groups, 2)

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Len())
}

func TestSnapshotCache_LoadStartedBeforeInvalidateIsNotCached(t *testing.T) {
	src, products := testFixture()
	cache := NewSnapshotCache(src, products)
	src.onLoad = func(int) { cache.Invalidate("p_15") }

	snap, err := cache.Load(context.Background(), "p_15")
	require.NoError(t, err)
	assert.Len(t, snap.Groups, 2, "caller still gets its result")
	assert.Equal(t, 0, cache.Len())
}

func TestSnapshotCache_LastResolvedWins(t *testing.T) {
	src, products := testFixture()
	cache := NewSnapshotCache(src, products)
	ctx := context.Background()

	// Первая загрузка "зависает", пока вторая успевает завершиться.
	src.onLoad = func(call int) {
		if call == 1 {
			products.products["p_15"] = catalog.Product{ID: "p_15", Name: "inner", CompatibilityTags: []string{"iphone15"}}
			_, err := cache.Load(ctx, "p_15")
			require.NoError(t, err)
		}
	}
	products.products["p_15"] = catalog.Product{ID: "p_15", Name: "outer", CompatibilityTags: []string{"iphone15"}}

	outer, err := cache.Load(ctx, "p_15")
	require.NoError(t, err)
	assert.Equal(t, "outer", outer.Product.Name)

	cached, err := cache.Load(ctx, "p_15")
	require.NoError(t, err)
	assert.Equal(t, "outer", cached.Product.Name, "the load that resolved last owns the entry")
	assert.Equal(t, 2, src.calls)
}

func TestSnapshotCache_Errors(t *testing.T) {
	src, products := testFixture()
	cache := NewSnapshotCache(src, products)

	_, err := cache.Load(context.Background(), "p_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	src.err = errors.New("db down")
	snap, err := cache.Load(context.Background(), "p_14")
	require.NoError(t, err)
	assert.Empty(t, snap.Groups)
	assert.Equal(t, 0, cache.Len(), "failed catalog loads are not cached")

	var nilCache *SnapshotCache
	_, err = nilCache.Load(context.Background(), "p_14")
	assert.ErrorIs(t, err, ErrNilStorage)
}
