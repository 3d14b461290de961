package service

import (
	"context"
	"errors"
	"testing"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"
	"github.com/duregger/cafe-rio-nutrition/internal/repository/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestItemCounts_CreateDeleteReassign(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")
	b := mustCategory(t, cat.Categories, "Sides", "sides")

	item, err := cat.Items.Create(ctx, dto.CreateItemRequest{
		Name:       "Taco",
		CategoryID: a.ID,
		Nutrition:  map[string]interface{}{"calories": 300},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, itemCount(t, cat.Categories, a.ID))
	assert.Equal(t, "Entrees", item.CategoryName)
	assert.Equal(t, 300.0, item.Nutrition.Calories)
	assert.True(t, item.IsActive)

	moved, err := cat.Items.Update(ctx, uuid.MustParse(item.ID), dto.UpdateItemRequest{CategoryID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, "Sides", moved.CategoryName)
	assert.Equal(t, 0, itemCount(t, cat.Categories, a.ID))
	assert.Equal(t, 1, itemCount(t, cat.Categories, b.ID))

	require.NoError(t, cat.Items.Delete(ctx, uuid.MustParse(item.ID)))
	assert.Equal(t, 0, itemCount(t, cat.Categories, b.ID))

	_, err = cat.Reader.GetItem(ctx, uuid.MustParse(item.ID))
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestItemUpdate_SameCategoryIsNotACountChange(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")
	item, err := cat.Items.Create(ctx, dto.CreateItemRequest{Name: "Taco", CategoryID: a.ID})
	require.NoError(t, err)

	got, err := cat.Items.Update(ctx, uuid.MustParse(item.ID), dto.UpdateItemRequest{
		CategoryID: &a.ID,
		Name:       strPtr("Street Taco"),
		Nutrition:  map[string]interface{}{"sodium": 410},
	})
	require.NoError(t, err)
	assert.Equal(t, "Street Taco", got.Name)
	assert.Equal(t, 410.0, got.Nutrition.Sodium)
	assert.Equal(t, 1, itemCount(t, cat.Categories, a.ID))

	assignments, err := cat.Items.(*itemService).items.ListAssignmentsByItem(ctx, uuid.MustParse(item.ID))
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}

func TestItemUpdate_PartialMergeKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")
	item, err := cat.Items.Create(ctx, dto.CreateItemRequest{
		Name:        "Taco",
		CategoryID:  a.ID,
		Nutrition:   map[string]interface{}{"calories": 300, "protein": 12},
		Allergens:   map[string]interface{}{"milk": true},
		ServingSize: strPtr("1 taco"),
	})
	require.NoError(t, err)

	_, err = cat.Items.Update(ctx, uuid.MustParse(item.ID), dto.UpdateItemRequest{Nutrition: map[string]interface{}{"calories": 310}})
	require.NoError(t, err)

	got, err := cat.Reader.GetItem(ctx, uuid.MustParse(item.ID))
	require.NoError(t, err)
	assert.Equal(t, 310.0, got.Nutrition.Calories)
	assert.Equal(t, 12.0, got.Nutrition.Protein)
	assert.True(t, got.Allergens.Milk)
	require.NotNil(t, got.ServingSize)
	assert.Equal(t, "1 taco", *got.ServingSize)
}

func TestItemCreate_Validation(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")
	before := store.Commits()

	cases := []dto.CreateItemRequest{
		{Name: "  ", CategoryID: a.ID},
		{Name: "Taco"},
		{Name: "Taco", CategoryID: "nope"},
		{Name: "Taco", CategoryID: uuid.NewString()},
	}
	for _, req := range cases {
		_, err := cat.Items.Create(ctx, req)
		assert.Equal(t, apierror.KindValidation, apierror.KindOf(err), "%+v", req)
	}
	assert.Equal(t, before, store.Commits())
}

func TestItemWrites_LegacySchema(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cat := NewCatalog(store.Repositories(), testConfig(), nil, nil)
	a := seedCategory(store, model.TableCategories, "Entrees", 1)
	b := seedCategory(store, model.TableCategories, "Sides", 0)
	seedLegacy(store, a, "Burrito", nil)

	item, err := cat.Items.Create(ctx, dto.CreateItemRequest{Name: "Taco", CategoryID: a.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 2, itemCount(t, cat.Categories, a.ID.String()))

	n, _ := store.Repositories().Items.CountBaseItems(ctx)
	assert.Zero(t, n, "legacy store keeps writing legacy rows")

	bID := b.ID.String()
	_, err = cat.Items.Update(ctx, uuid.MustParse(item.ID), dto.UpdateItemRequest{CategoryID: &bID})
	require.NoError(t, err)
	assert.Equal(t, 1, itemCount(t, cat.Categories, a.ID.String()))
	assert.Equal(t, 1, itemCount(t, cat.Categories, bID))

	stored, err := store.Repositories().Items.FindLegacyByID(ctx, uuid.MustParse(item.ID))
	require.NoError(t, err)
	assert.Equal(t, "Sides", stored.CategoryName)

	require.NoError(t, cat.Items.Delete(ctx, uuid.MustParse(item.ID)))
	assert.Equal(t, 0, itemCount(t, cat.Categories, bID))
}

func TestItemDelete_DecrementsEveryAssignedCategory(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	a := seedCategory(store, model.TableCategories, "Add", 1)
	b := seedCategory(store, model.TableCategories, "Extra", 1)
	id := uuid.New()
	store.PutBaseItem(model.BaseItem{ID: id, Name: "Queso", IsActive: true})
	store.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: id, CategoryID: a.ID})
	store.PutAssignment(model.ItemCategoryAssignment{ID: uuid.New(), ItemID: id, CategoryID: b.ID})

	require.NoError(t, cat.Items.Delete(ctx, id))
	assert.Equal(t, 0, itemCount(t, cat.Categories, a.ID.String()))
	assert.Equal(t, 0, itemCount(t, cat.Categories, b.ID.String()))

	left, _ := store.Repositories().Items.ListAssignments(ctx)
	assert.Empty(t, left)
}

func TestBulkCreate_ChunksAndCounts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := testConfig()
	cfg.ImportBatchSize = 3
	cat := NewCatalog(store.Repositories(), cfg, nil, nil)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")
	b := mustCategory(t, cat.Categories, "Sides", "sides")

	reqs := []dto.CreateItemRequest{
		{Name: "Taco", CategoryID: a.ID},
		{Name: "Burrito", CategoryID: a.ID},
		{Name: "Chips", CategoryID: b.ID},
		{Name: "Rice", CategoryID: b.ID},
		{Name: "Beans", CategoryID: b.ID},
	}
	res, err := cat.Items.BulkCreate(ctx, reqs)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Created)
	// two writes per item with a limit of three: one batch per item, then counts
	assert.Equal(t, 6, res.BatchesCommitted)
	assert.Equal(t, 2, itemCount(t, cat.Categories, a.ID))
	assert.Equal(t, 3, itemCount(t, cat.Categories, b.ID))
}

func TestBulkCreate_ValidatesEverythingFirst(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")
	before := store.Commits()

	_, err := cat.Items.BulkCreate(ctx, []dto.CreateItemRequest{
		{Name: "Taco", CategoryID: a.ID},
		{Name: "", CategoryID: a.ID},
	})
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Contains(t, apierror.PublicMessage(err), "items[1]")
	assert.Equal(t, before, store.Commits())
}

func TestBulkCreate_PartialFailure(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := testConfig()
	cfg.ImportBatchSize = 2
	cat := NewCatalog(store.Repositories(), cfg, nil, nil)
	a := mustCategory(t, cat.Categories, "Entrees", "entrees")

	store.FailCommit(2, errors.New("store unavailable"))
	_, err := cat.Items.BulkCreate(ctx, []dto.CreateItemRequest{
		{Name: "Taco", CategoryID: a.ID},
		{Name: "Burrito", CategoryID: a.ID},
	})
	require.Error(t, err)
	assert.Equal(t, apierror.KindPartialImport, apierror.KindOf(err))

	var e *apierror.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.CommittedBatches)
	// the count pass never ran
	assert.Equal(t, 0, itemCount(t, cat.Categories, a.ID))
}

func TestItemUpdate_ImportedItemMovesFromFirstCategory(t *testing.T) {
	ctx := context.Background()
	_, cat := newTestCatalog(t)
	_, err := cat.Importer.ImportNutrition(ctx, []byte(tacoImport))
	require.NoError(t, err)

	cats, err := cat.Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	entrees, sides := cats[0], cats[1]
	items, err := cat.Reader.ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	moved, err := cat.Items.Update(ctx, uuid.MustParse(items[0].ID), dto.UpdateItemRequest{CategoryID: &sides.ID})
	require.NoError(t, err)
	assert.Equal(t, "Sides", moved.CategoryName)
	assert.Equal(t, 0, itemCount(t, cat.Categories, entrees.ID))
	assert.Equal(t, 1, itemCount(t, cat.Categories, sides.ID))
}

// staleAssignments answers assignment lookups from a snapshot taken before
// another writer changed them.
type staleAssignments struct {
	repository.ItemRepository
	snapshot []model.ItemCategoryAssignment
}

func (s staleAssignments) ListAssignmentsByItem(context.Context, uuid.UUID) ([]model.ItemCategoryAssignment, error) {
	return s.snapshot, nil
}

func TestItemUpdate_ConcurrentReassignDriftIsReconciled(t *testing.T) {
	ctx := context.Background()
	store, cat := newTestCatalog(t)
	entrees := mustCategory(t, cat.Categories, "Entrees", "entrees")
	sides := mustCategory(t, cat.Categories, "Sides", "sides")
	kids := mustCategory(t, cat.Categories, "Kids", "kids")

	item, err := cat.Items.Create(ctx, dto.CreateItemRequest{Name: "Taco", CategoryID: entrees.ID})
	require.NoError(t, err)
	id := uuid.MustParse(item.ID)

	repos := store.Repositories()
	snapshot, err := repos.Items.ListAssignmentsByItem(ctx, id)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	// Both writers read the item while it was still in Entrees.
	stale := *repos
	stale.Items = staleAssignments{ItemRepository: repos.Items, snapshot: snapshot}
	first := NewItemService(&stale, config.SchemaAuto, 450, nil)
	second := NewItemService(&stale, config.SchemaAuto, 450, nil)

	_, err = first.Update(ctx, id, dto.UpdateItemRequest{CategoryID: &sides.ID})
	require.NoError(t, err)
	_, err = second.Update(ctx, id, dto.UpdateItemRequest{CategoryID: &kids.ID})
	require.NoError(t, err)

	assert.Equal(t, -1, itemCount(t, cat.Categories, entrees.ID))
	assert.Equal(t, 1, itemCount(t, cat.Categories, sides.ID))
	assert.Equal(t, 1, itemCount(t, cat.Categories, kids.ID))

	report, err := cat.Reconciler.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, entrees.ID, report.Drift[0].CategoryID)
	assert.Equal(t, -1, report.Drift[0].Cached)
	assert.Equal(t, 0, report.Drift[0].Actual)

	assert.Equal(t, 0, itemCount(t, cat.Categories, entrees.ID))
	assert.Equal(t, 1, itemCount(t, cat.Categories, sides.ID))
	assert.Equal(t, 1, itemCount(t, cat.Categories, kids.ID))
}
