package service

import (
	"context"
	"strings"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ItemService writes menu items in whichever schema the store currently
// uses and keeps category counts in the same batch as the item writes.
type ItemService interface {
	Create(ctx context.Context, req dto.CreateItemRequest) (*dto.MenuItem, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateItemRequest) (*dto.MenuItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkCreate(ctx context.Context, reqs []dto.CreateItemRequest) (*dto.BulkCreateResponse, error)
}

type itemService struct {
	items      repository.ItemRepository
	categories repository.CategoryRepository
	writer     repository.BatchWriter
	schema     schemaResolver
	batchSize  int
	observer   ImportObserver
}

func NewItemService(repos *repository.Repositories, schemaMode string, batchSize int, obs ImportObserver) ItemService {
	if obs == nil {
		obs = noopObserver{}
	}
	return &itemService{
		items:      repos.Items,
		categories: repos.Categories,
		writer:     repos.Writer,
		schema:     schemaResolver{items: repos.Items, mode: schemaMode},
		batchSize:  batchSize,
		observer:   obs,
	}
}

// newItem is a validated item ready to be staged.
type newItem struct {
	name      string
	category  model.Category
	nutrition model.NutritionData
	allergens model.AllergenFlags
	serving   *string
	active    bool
}

func writesPerItem(schema Schema) int {
	if schema == SchemaLegacy {
		return 1
	}
	return 2
}

func (s *itemService) validate(ctx context.Context, req dto.CreateItemRequest, cache map[string]*model.Category) (newItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return newItem{}, apierror.Validation("name is required")
	}
	cat, err := resolveCategory(ctx, s.categories, req.CategoryID, cache)
	if err != nil {
		return newItem{}, err
	}
	in := newItem{
		name:      name,
		category:  *cat,
		nutrition: model.MergeNutrition(model.NutritionData{}, req.Nutrition),
		allergens: model.MergeAllergens(model.AllergenFlags{}, req.Allergens),
		serving:   req.ServingSize,
		active:    true,
	}
	if req.IsActive != nil {
		in.active = *req.IsActive
	}
	return in, nil
}

// stage queues the writes for one new item and records its count delta.
func (s *itemService) stage(b *repository.Batch, ledger *countLedger, schema Schema, in newItem, now time.Time) dto.MenuItem {
	id := uuid.New()
	if schema == SchemaLegacy {
		it := &model.LegacyItem{
			ID:           id,
			Name:         in.name,
			CategoryID:   in.category.ID,
			CategoryName: in.category.Name,
			Nutrition:    datatypes.JSONMap(in.nutrition.ToMap()),
			Allergens:    datatypes.JSONMap(in.allergens.ToMap()),
			ServingSize:  in.serving,
			IsActive:     in.active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		b.Create(model.TableLegacyItems, id, it)
		ledger.add(in.category.ID, 1)
		return menuItemFromLegacy(*it)
	}

	it := &model.BaseItem{
		ID:          id,
		Name:        in.name,
		Nutrition:   datatypes.JSONMap(in.nutrition.ToMap()),
		Allergens:   datatypes.JSONMap(in.allergens.ToMap()),
		ServingSize: in.serving,
		IsActive:    in.active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a := model.NewAssignment(id, in.category.ID, now)
	b.Create(model.TableBaseItems, id, it)
	b.Create(model.TableAssignments, a.ID, a)
	ledger.add(in.category.ID, 1)
	return menuItemFromBase(*it, in.category.ID, in.category.Name)
}

func (s *itemService) Create(ctx context.Context, req dto.CreateItemRequest) (*dto.MenuItem, error) {
	in, err := s.validate(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	schema, err := s.schema.forWrite(ctx)
	if err != nil {
		return nil, err
	}

	b := repository.NewBatch()
	ledger := newCountLedger(model.TableCategories)
	item := s.stage(b, ledger, schema, in, time.Now().UTC())
	ledger.flushInto(b)
	if err := s.writer.Commit(ctx, b); err != nil {
		return nil, apierror.Upstream("create item", err)
	}
	return &item, nil
}

// Update merges the present fields over the stored item. A category change
// is applied only when it differs from the current category, and moves one
// count from the old category to the new one in the same batch.
func (s *itemService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateItemRequest) (*dto.MenuItem, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apierror.Validation("name cannot be empty")
	}

	base, err := s.items.FindBaseItemByID(ctx, id)
	switch {
	case err == nil:
		return s.updateBase(ctx, base, req)
	case !isNotFound(err):
		return nil, apierror.Upstream("find base item", err)
	}
	legacy, err := s.items.FindLegacyByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.NotFound("Item")
		}
		return nil, apierror.Upstream("find legacy item", err)
	}
	return s.updateLegacy(ctx, legacy, req)
}

// itemPatch applies the common fields of req to the stored facts and
// returns the column updates.
func itemPatch(req dto.UpdateItemRequest, name *string, nutrition, allergens *datatypes.JSONMap, attrs datatypes.JSONMap, serving **string, active *bool, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{"updated_at": now}
	if req.Name != nil {
		*name = strings.TrimSpace(*req.Name)
		updates["name"] = *name
	}
	if req.Nutrition != nil {
		merged := model.MergeNutrition(model.ExtractNutrition(*nutrition, attrs), req.Nutrition)
		*nutrition = datatypes.JSONMap(merged.ToMap())
		updates["nutrition"] = *nutrition
	}
	if req.Allergens != nil {
		merged := model.MergeAllergens(model.ExtractAllergens(*allergens, attrs), req.Allergens)
		*allergens = datatypes.JSONMap(merged.ToMap())
		updates["allergens"] = *allergens
	}
	if req.ServingSize != nil {
		*serving = req.ServingSize
		updates["serving_size"] = *req.ServingSize
	}
	if req.IsActive != nil {
		*active = *req.IsActive
		updates["is_active"] = *req.IsActive
	}
	return updates
}

func (s *itemService) updateBase(ctx context.Context, it *model.BaseItem, req dto.UpdateItemRequest) (*dto.MenuItem, error) {
	assignments, err := s.items.ListAssignmentsByItem(ctx, it.ID)
	if err != nil {
		return nil, apierror.Upstream("list item assignments", err)
	}
	current := uuid.Nil
	if len(assignments) > 0 {
		current = assignments[0].CategoryID
	}

	now := time.Now().UTC()
	updates := itemPatch(req, &it.Name, &it.Nutrition, &it.Allergens, it.Attributes, &it.ServingSize, &it.IsActive, now)
	it.UpdatedAt = now

	b := repository.NewBatch()
	ledger := newCountLedger(model.TableCategories)
	b.Update(model.TableBaseItems, it.ID, updates)

	var target *model.Category
	if req.CategoryID != nil {
		target, err = resolveCategory(ctx, s.categories, *req.CategoryID, nil)
		if err != nil {
			return nil, err
		}
		if target.ID != current {
			if current != uuid.Nil {
				b.Delete(model.TableAssignments, assignments[0].ID)
				ledger.add(current, -1)
			}
			if !hasAssignment(assignments, target.ID) {
				a := model.NewAssignment(it.ID, target.ID, now)
				b.Create(model.TableAssignments, a.ID, a)
				ledger.add(target.ID, 1)
			}
		}
	}
	ledger.flushInto(b)
	if err := s.writer.Commit(ctx, b); err != nil {
		return nil, apierror.Upstream("update item", err)
	}

	if target != nil {
		m := menuItemFromBase(*it, target.ID, target.Name)
		return &m, nil
	}
	name, err := s.categoryName(ctx, current)
	if err != nil {
		return nil, err
	}
	m := menuItemFromBase(*it, current, name)
	return &m, nil
}

func (s *itemService) updateLegacy(ctx context.Context, it *model.LegacyItem, req dto.UpdateItemRequest) (*dto.MenuItem, error) {
	now := time.Now().UTC()
	updates := itemPatch(req, &it.Name, &it.Nutrition, &it.Allergens, it.Attributes, &it.ServingSize, &it.IsActive, now)
	it.UpdatedAt = now

	b := repository.NewBatch()
	ledger := newCountLedger(model.TableCategories)
	if req.CategoryID != nil {
		target, err := resolveCategory(ctx, s.categories, *req.CategoryID, nil)
		if err != nil {
			return nil, err
		}
		if target.ID != it.CategoryID {
			ledger.add(it.CategoryID, -1)
			ledger.add(target.ID, 1)
			it.CategoryID = target.ID
			it.CategoryName = target.Name
			updates["category_id"] = target.ID
			updates["category_name"] = target.Name
		}
	}
	b.Update(model.TableLegacyItems, it.ID, updates)
	ledger.flushInto(b)
	if err := s.writer.Commit(ctx, b); err != nil {
		return nil, apierror.Upstream("update item", err)
	}
	m := menuItemFromLegacy(*it)
	return &m, nil
}

// Delete removes the item and every assignment it has, decrementing each
// affected category in the same batch.
func (s *itemService) Delete(ctx context.Context, id uuid.UUID) error {
	b := repository.NewBatch()
	ledger := newCountLedger(model.TableCategories)

	_, err := s.items.FindBaseItemByID(ctx, id)
	switch {
	case err == nil:
		assignments, err := s.items.ListAssignmentsByItem(ctx, id)
		if err != nil {
			return apierror.Upstream("list item assignments", err)
		}
		for _, a := range assignments {
			b.Delete(model.TableAssignments, a.ID)
			ledger.add(a.CategoryID, -1)
		}
		b.Delete(model.TableBaseItems, id)
	case isNotFound(err):
		legacy, err := s.items.FindLegacyByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return apierror.NotFound("Item")
			}
			return apierror.Upstream("find legacy item", err)
		}
		b.Delete(model.TableLegacyItems, id)
		ledger.add(legacy.CategoryID, -1)
	default:
		return apierror.Upstream("find base item", err)
	}

	ledger.flushInto(b)
	if err := s.writer.Commit(ctx, b); err != nil {
		return apierror.Upstream("delete item", err)
	}
	return nil
}

// BulkCreate validates every row before writing anything, then writes the
// items in chunks and applies the aggregated counts in a final pass.
func (s *itemService) BulkCreate(ctx context.Context, reqs []dto.CreateItemRequest) (*dto.BulkCreateResponse, error) {
	if len(reqs) == 0 {
		return nil, apierror.Validation("items must not be empty")
	}
	cache := map[string]*model.Category{}
	rows := make([]newItem, len(reqs))
	for i, req := range reqs {
		in, err := s.validate(ctx, req, cache)
		if err != nil {
			if apierror.KindOf(err) == apierror.KindValidation {
				return nil, apierror.Validationf("items[%d]: %s", i, apierror.PublicMessage(err))
			}
			return nil, err
		}
		rows[i] = in
	}
	schema, err := s.schema.forWrite(ctx)
	if err != nil {
		return nil, err
	}

	w := newChunkWriter(ctx, s.writer, s.batchSize, "bulk_items", s.observer)
	ledger := newCountLedger(model.TableCategories)
	now := time.Now().UTC()
	created := make([]dto.MenuItem, 0, len(rows))
	for _, in := range rows {
		if err := w.reserve(writesPerItem(schema)); err != nil {
			return nil, w.fail("bulk create items", err)
		}
		created = append(created, s.stage(w.batch(), ledger, schema, in, now))
	}
	if err := w.flush(); err != nil {
		return nil, w.fail("bulk create items", err)
	}
	if err := w.flushLedger(ledger); err != nil {
		return nil, w.fail("bulk create items", err)
	}
	w.done()

	return &dto.BulkCreateResponse{Created: len(created), BatchesCommitted: w.committed, Items: created}, nil
}

func (s *itemService) categoryName(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", nil
	}
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", apierror.Upstream("find category", err)
	}
	return c.Name, nil
}

func hasAssignment(list []model.ItemCategoryAssignment, categoryID uuid.UUID) bool {
	for _, a := range list {
		if a.CategoryID == categoryID {
			return true
		}
	}
	return false
}

// resolveCategory turns a client categoryId into a stored category. Unknown
// ids are a validation failure of the payload, not a missing resource.
func resolveCategory(ctx context.Context, repo repository.CategoryRepository, raw string, cache map[string]*model.Category) (*model.Category, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apierror.Validation("categoryId is required")
	}
	if c, ok := cache[raw]; ok {
		return c, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierror.Validationf("categoryId %q is not a valid id", raw)
	}
	c, err := repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.Validationf("categoryId %q does not match any category", raw)
		}
		return nil, apierror.Upstream("find category", err)
	}
	if cache != nil {
		cache[raw] = c
	}
	return c, nil
}
