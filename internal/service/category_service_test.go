package service

import (
	"context"
	"testing"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryCreate_Defaults(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	order := 1

	created, err := cat.Categories.Create(ctx, dto.CreateCategoryRequest{Name: "Protein", Slug: "protein", DisplayOrder: &order})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := cat.Categories.Get(ctx, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, 0, got.ItemCount)
	assert.True(t, got.IsActive)
	assert.Equal(t, 1, got.DisplayOrder)
}

func TestCategoryCreate_Validation(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	mustCategory(t, cat.Categories, "Protein", "protein")

	cases := []dto.CreateCategoryRequest{
		{Name: "", Slug: "x"},
		{Name: "X", Slug: " "},
		{Name: "X", Slug: "Not A Slug"},
		{Name: "Protein 2", Slug: "protein"},
	}
	for _, req := range cases {
		_, err := cat.Categories.Create(ctx, req)
		assert.Equal(t, apierror.KindValidation, apierror.KindOf(err), "%+v", req)
	}
}

func TestCategoryList_OrderedByDisplayOrder(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	for i, name := range []string{"Sides", "Entrees", "Drinks"} {
		order := 3 - i
		_, err := cat.Categories.Create(ctx, dto.CreateCategoryRequest{Name: name, Slug: slugify(name), DisplayOrder: &order})
		require.NoError(t, err)
	}
	list, err := cat.Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Drinks", "Entrees", "Sides"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestCategoryDelete_BlockedByDependents(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	c := mustCategory(t, cat.Categories, "Entrees", "entrees")
	item, err := cat.Items.Create(ctx, dto.CreateItemRequest{Name: "Taco", CategoryID: c.ID})
	require.NoError(t, err)
	before := store.Commits()

	err = cat.Categories.Delete(ctx, uuid.MustParse(c.ID))
	require.Error(t, err)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))
	assert.Equal(t, ErrHasDependents, apierror.PublicMessage(err))
	assert.Equal(t, before, store.Commits())

	_, err = cat.Categories.Get(ctx, uuid.MustParse(c.ID))
	assert.NoError(t, err)
	_, err = cat.Reader.GetItem(ctx, uuid.MustParse(item.ID))
	assert.NoError(t, err)
}

func TestCategoryDelete_BlockedByLegacyItems(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	c := seedCategory(store, model.TableCategories, "Entrees", 1)
	seedLegacy(store, c, "Burrito", nil)

	err := cat.Categories.Delete(ctx, c.ID)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))
}

func TestCategoryDelete_EmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	c := mustCategory(t, cat.Categories, "Entrees", "entrees")

	require.NoError(t, cat.Categories.Delete(ctx, uuid.MustParse(c.ID)))
	err := cat.Categories.Delete(ctx, uuid.MustParse(c.ID))
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestCategoryUpdate_PartialAndRenamePropagates(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	c := seedCategory(store, model.TableCategories, "Entrees", 1)
	old := seedLegacy(store, c, "Burrito", nil)

	got, err := cat.Categories.Update(ctx, c.ID, dto.UpdateCategoryRequest{Name: strPtr("Mains")})
	require.NoError(t, err)
	assert.Equal(t, "Mains", got.Name)
	assert.Equal(t, c.Slug, got.Slug)
	assert.Equal(t, 1, got.ItemCount)

	stored, err := store.Repositories().Items.FindLegacyByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mains", stored.CategoryName)
}

func TestAllergenCategories_IndependentScope(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	menu := mustCategory(t, cat.Categories, "Entrees", "entrees")
	allergen := mustCategory(t, cat.AllergenCategories, "Entrees", "entrees")

	_, err := cat.AllergenItems.Create(ctx, dto.CreateAllergenItemRequest{
		Name:       "Taco",
		CategoryID: allergen.ID,
		Allergens:  map[string]interface{}{"milk": true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, itemCount(t, cat.AllergenCategories, allergen.ID))
	assert.Equal(t, 0, itemCount(t, cat.Categories, menu.ID))

	assert.NoError(t, cat.Categories.Delete(ctx, uuid.MustParse(menu.ID)))
	err = cat.AllergenCategories.Delete(ctx, uuid.MustParse(allergen.ID))
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	n, _ := store.Repositories().AllergenCategories.Count(ctx)
	assert.Equal(t, int64(1), n)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "kids-meals", slugify("  Kid's   Meals "))
	assert.Equal(t, "sides", slugify("Sides!"))
	assert.Equal(t, "category", slugify("¡¿?"))
}
