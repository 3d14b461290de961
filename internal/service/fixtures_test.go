package service

import (
	"context"
	"testing"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func testConfig() *config.Config {
	return &config.Config{
		SchemaMode:         config.SchemaAuto,
		ImportBatchSize:    450,
		AllowedEmailDomain: "caferio.com",
	}
}

func newTestCatalog(t *testing.T) (*memstore.Store, *Catalog) {
	t.Helper()
	store := memstore.New()
	return store, NewCatalog(store.Repositories(), testConfig(), nil, nil)
}

func mustCategory(t *testing.T, svc CategoryService, name, slug string) *dto.CategoryResponse {
	t.Helper()
	c, err := svc.Create(context.Background(), dto.CreateCategoryRequest{Name: name, Slug: slug})
	require.NoError(t, err)
	return c
}

func itemCount(t *testing.T, svc CategoryService, id string) int {
	t.Helper()
	c, err := svc.Get(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	return c.ItemCount
}

// seedLegacy stores a legacy item directly and bumps its category count the
// way the old write path did.
func seedLegacy(store *memstore.Store, cat model.Category, name string, nutrition map[string]interface{}) model.LegacyItem {
	it := model.LegacyItem{
		ID:           uuid.New(),
		Name:         name,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Nutrition:    datatypes.JSONMap(nutrition),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	store.PutLegacyItem(it)
	return it
}

func seedCategory(store *memstore.Store, table, name string, count int) model.Category {
	c := model.Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slugify(name),
		IsActive:  true,
		ItemCount: count,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	store.PutCategory(table, c)
	return c
}
