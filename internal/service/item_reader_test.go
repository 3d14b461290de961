package service

import (
	"context"
	"testing"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestListItems_LegacyAndNormalizedAgree(t *testing.T) {
	ctx := context.Background()

	legacyStore := memstore.New()
	cat := seedCategory(legacyStore, model.TableCategories, "Entrees", 1)
	legacyStore.PutLegacyItem(model.LegacyItem{
		ID:           uuid.New(),
		Name:         "Burrito",
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Nutrition:    datatypes.JSONMap{"calories": 640, "protein": "31"},
		Attributes:   datatypes.JSONMap{"milk": true, "wheat": "yes"},
		IsActive:     true,
	})

	normStore := memstore.New()
	normStore.PutCategory(model.TableCategories, cat)
	itemID := uuid.New()
	normStore.PutBaseItem(model.BaseItem{
		ID:        itemID,
		Name:      "Burrito",
		Nutrition: datatypes.JSONMap{"calories": 640.0, "protein": 31.0},
		Allergens: datatypes.JSONMap{"milk": true, "wheat": true},
		IsActive:  true,
	})
	normStore.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: itemID, CategoryID: cat.ID})

	legacy, err := NewItemReader(legacyStore.Repositories().Items, legacyStore.Repositories().Categories, "auto").ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)
	normalized, err := NewItemReader(normStore.Repositories().Items, normStore.Repositories().Categories, "auto").ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)

	require.Len(t, legacy, 1)
	require.Len(t, normalized, 1)
	for _, got := range []dto.MenuItem{legacy[0], normalized[0]} {
		assert.Equal(t, "Burrito", got.Name)
		assert.Equal(t, "Entrees", got.CategoryName)
		assert.Equal(t, cat.ID.String(), got.CategoryID)
		assert.Equal(t, 640.0, got.Nutrition.Calories)
		assert.Equal(t, 31.0, got.Nutrition.Protein)
		assert.True(t, got.Allergens.Milk)
		assert.True(t, got.Allergens.Wheat)
		assert.False(t, got.Allergens.Egg)
	}
	assert.Equal(t, legacy[0].Nutrition, normalized[0].Nutrition)
	assert.Equal(t, legacy[0].Allergens, normalized[0].Allergens)
}

func TestListItems_NormalizedHidesUnmigratedLegacy(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cat := seedCategory(store, model.TableCategories, "Sides", 2)
	seedLegacy(store, cat, "Chips", nil)
	store.PutBaseItem(model.BaseItem{ID: uuid.New(), Name: "Rice", IsActive: true})

	r := NewItemReader(store.Repositories().Items, store.Repositories().Categories, "auto")
	list, err := r.ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rice", list[0].Name)
	assert.Equal(t, model.UncategorizedName, list[0].CategoryName)
	assert.Empty(t, list[0].CategoryID)
}

func TestListItems_FirstAssignmentWins(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	first := seedCategory(store, model.TableCategories, "Add", 1)
	second := seedCategory(store, model.TableCategories, "Extra", 1)
	id := uuid.New()
	t0 := time.Now().UTC()
	store.PutBaseItem(model.BaseItem{ID: id, Name: "Guacamole", IsActive: true})
	store.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: id, CategoryID: second.ID, CreatedAt: t0.Add(time.Second)})
	store.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: id, CategoryID: first.ID, CreatedAt: t0})

	list, err := NewItemReader(store.Repositories().Items, store.Repositories().Categories, "auto").ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Add", list[0].CategoryName)
}

func TestListItems_Filters(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cat := seedCategory(store, model.TableCategories, "Drinks", 0)
	other := seedCategory(store, model.TableCategories, "Desserts", 0)
	for _, it := range []struct {
		name   string
		cat    model.Category
		active bool
	}{
		{"Lemonade", cat, true},
		{"Horchata", cat, false},
		{"Churro", other, true},
	} {
		id := uuid.New()
		store.PutBaseItem(model.BaseItem{ID: id, Name: it.name, IsActive: it.active})
		store.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: id, CategoryID: it.cat.ID})
	}
	r := NewItemReader(store.Repositories().Items, store.Repositories().Categories, "auto")

	byCat, err := r.ListItems(ctx, dto.ItemFilter{CategoryID: cat.ID.String()})
	require.NoError(t, err)
	require.Len(t, byCat, 2)
	assert.Equal(t, "Horchata", byCat[0].Name)
	assert.Equal(t, "Lemonade", byCat[1].Name)

	active, err := r.ListItems(ctx, dto.ItemFilter{CategoryID: cat.ID.String(), IsActive: "true"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Lemonade", active[0].Name)

	inactive, err := r.ListItems(ctx, dto.ItemFilter{IsActive: "false"})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "Horchata", inactive[0].Name)

	none, err := r.ListItems(ctx, dto.ItemFilter{CategoryID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetItem_FallsBackToLegacy(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cat := seedCategory(store, model.TableCategories, "Salads", 1)
	old := seedLegacy(store, cat, "Taco Salad", map[string]interface{}{"calories": 720})
	store.PutBaseItem(model.BaseItem{ID: uuid.New(), Name: "Rice", IsActive: true})

	r := NewItemReader(store.Repositories().Items, store.Repositories().Categories, "auto")
	got, err := r.GetItem(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, "Taco Salad", got.Name)
	assert.Equal(t, 720.0, got.Nutrition.Calories)

	_, err = r.GetItem(ctx, uuid.New())
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestSchemaMode_ForcedLegacy(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cat := seedCategory(store, model.TableCategories, "Sides", 1)
	seedLegacy(store, cat, "Chips", nil)
	store.PutBaseItem(model.BaseItem{ID: uuid.New(), Name: "Rice", IsActive: true})

	list, err := NewItemReader(store.Repositories().Items, store.Repositories().Categories, "legacy").ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Chips", list[0].Name)
}
