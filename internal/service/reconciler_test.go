package service

import (
	"context"
	"testing"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_ReportsAndAppliesDrift(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	stale := seedCategory(store, model.TableCategories, "Entrees", 7)
	ok := seedCategory(store, model.TableCategories, "Sides", 1)
	allergen := seedCategory(store, model.TableAllergenCategories, "Entrees", 0)

	id := uuid.New()
	store.PutBaseItem(model.BaseItem{ID: id, Name: "Taco", IsActive: true})
	store.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: id, CategoryID: stale.ID})
	seedLegacy(store, ok, "Chips", nil)
	store.PutAllergenItem(model.AllergenItem{ID: uuid.New(), Name: "Taco", CategoryID: allergen.ID, CategoryName: allergen.Name})

	report, err := cat.Reconciler.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Drift, 2)
	assert.False(t, report.Applied)
	assert.Equal(t, 7, itemCount(t, cat.Categories, stale.ID.String()))

	report, err = cat.Reconciler.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, 1, itemCount(t, cat.Categories, stale.ID.String()))
	assert.Equal(t, 1, itemCount(t, cat.AllergenCategories, allergen.ID.String()))

	report, err = cat.Reconciler.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Drift)
}
