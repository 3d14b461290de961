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

// AllergenItemService manages the always-denormalized allergen items.
type AllergenItemService interface {
	List(ctx context.Context, filter dto.ItemFilter) ([]dto.AllergenItemResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.AllergenItemResponse, error)
	Create(ctx context.Context, req dto.CreateAllergenItemRequest) (*dto.AllergenItemResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateAllergenItemRequest) (*dto.AllergenItemResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkCreate(ctx context.Context, reqs []dto.CreateAllergenItemRequest) (*dto.BulkCreateResponse, error)
}

type allergenItemService struct {
	items      repository.AllergenItemRepository
	categories repository.CategoryRepository
	writer     repository.BatchWriter
	batchSize  int
	observer   ImportObserver
}

func NewAllergenItemService(repos *repository.Repositories, batchSize int, obs ImportObserver) AllergenItemService {
	if obs == nil {
		obs = noopObserver{}
	}
	return &allergenItemService{
		items:      repos.AllergenItems,
		categories: repos.AllergenCategories,
		writer:     repos.Writer,
		batchSize:  batchSize,
		observer:   obs,
	}
}

func mapAllergenItem(it model.AllergenItem) dto.AllergenItemResponse {
	resp := dto.AllergenItemResponse{
		ID:           it.ID.String(),
		Name:         it.Name,
		CategoryName: it.CategoryName,
		Allergens:    model.ExtractAllergens(it.Allergens, it.Attributes),
		IsActive:     it.IsActive,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
	if it.CategoryID == uuid.Nil {
		resp.CategoryName = model.UncategorizedName
	} else {
		resp.CategoryID = it.CategoryID.String()
	}
	return resp
}

func (s *allergenItemService) List(ctx context.Context, filter dto.ItemFilter) ([]dto.AllergenItemResponse, error) {
	var (
		list []model.AllergenItem
		err  error
	)
	if filter.CategoryID != "" {
		id, perr := uuid.Parse(filter.CategoryID)
		if perr != nil {
			return []dto.AllergenItemResponse{}, nil
		}
		list, err = s.items.ListByCategory(ctx, id)
	} else {
		list, err = s.items.List(ctx)
	}
	if err != nil {
		return nil, apierror.Upstream("list allergen items", err)
	}
	out := make([]dto.AllergenItemResponse, 0, len(list))
	for _, it := range list {
		if filter.IsActive != "" && it.IsActive != (filter.IsActive == "true") {
			continue
		}
		out = append(out, mapAllergenItem(it))
	}
	return out, nil
}

func (s *allergenItemService) Get(ctx context.Context, id uuid.UUID) (*dto.AllergenItemResponse, error) {
	it, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := mapAllergenItem(*it)
	return &resp, nil
}

func (s *allergenItemService) find(ctx context.Context, id uuid.UUID) (*model.AllergenItem, error) {
	it, err := s.items.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.NotFound("Allergen item")
		}
		return nil, apierror.Upstream("find allergen item", err)
	}
	return it, nil
}

func (s *allergenItemService) build(ctx context.Context, req dto.CreateAllergenItemRequest, cache map[string]*model.Category, now time.Time) (*model.AllergenItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apierror.Validation("name is required")
	}
	cat, err := resolveCategory(ctx, s.categories, req.CategoryID, cache)
	if err != nil {
		return nil, err
	}
	it := &model.AllergenItem{
		ID:           uuid.New(),
		Name:         name,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Allergens:    datatypes.JSONMap(model.MergeAllergens(model.AllergenFlags{}, req.Allergens).ToMap()),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.IsActive != nil {
		it.IsActive = *req.IsActive
	}
	return it, nil
}

func (s *allergenItemService) Create(ctx context.Context, req dto.CreateAllergenItemRequest) (*dto.AllergenItemResponse, error) {
	it, err := s.build(ctx, req, nil, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	b := repository.NewBatch()
	b.Create(model.TableAllergenItems, it.ID, it)
	b.Increment(model.TableAllergenCategories, it.CategoryID, itemCountColumn, 1)
	if err := s.writer.Commit(ctx, b); err != nil {
		return nil, apierror.Upstream("create allergen item", err)
	}
	resp := mapAllergenItem(*it)
	return &resp, nil
}

func (s *allergenItemService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateAllergenItemRequest) (*dto.AllergenItemResponse, error) {
	it, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"updated_at": now}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apierror.Validation("name cannot be empty")
		}
		it.Name = name
		updates["name"] = name
	}
	if req.Allergens != nil {
		merged := model.MergeAllergens(model.ExtractAllergens(it.Allergens, it.Attributes), req.Allergens)
		it.Allergens = datatypes.JSONMap(merged.ToMap())
		updates["allergens"] = it.Allergens
	}
	if req.IsActive != nil {
		it.IsActive = *req.IsActive
		updates["is_active"] = *req.IsActive
	}
	it.UpdatedAt = now

	b := repository.NewBatch()
	ledger := newCountLedger(model.TableAllergenCategories)
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
	b.Update(model.TableAllergenItems, id, updates)
	ledger.flushInto(b)
	if err := s.writer.Commit(ctx, b); err != nil {
		return nil, apierror.Upstream("update allergen item", err)
	}
	resp := mapAllergenItem(*it)
	return &resp, nil
}

func (s *allergenItemService) Delete(ctx context.Context, id uuid.UUID) error {
	it, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	b := repository.NewBatch()
	ledger := newCountLedger(model.TableAllergenCategories)
	b.Delete(model.TableAllergenItems, id)
	ledger.add(it.CategoryID, -1)
	ledger.flushInto(b)
	if err := s.writer.Commit(ctx, b); err != nil {
		return apierror.Upstream("delete allergen item", err)
	}
	return nil
}

func (s *allergenItemService) BulkCreate(ctx context.Context, reqs []dto.CreateAllergenItemRequest) (*dto.BulkCreateResponse, error) {
	if len(reqs) == 0 {
		return nil, apierror.Validation("items must not be empty")
	}
	now := time.Now().UTC()
	cache := map[string]*model.Category{}
	rows := make([]*model.AllergenItem, len(reqs))
	for i, req := range reqs {
		it, err := s.build(ctx, req, cache, now)
		if err != nil {
			if apierror.KindOf(err) == apierror.KindValidation {
				return nil, apierror.Validationf("items[%d]: %s", i, apierror.PublicMessage(err))
			}
			return nil, err
		}
		rows[i] = it
	}

	w := newChunkWriter(ctx, s.writer, s.batchSize, "bulk_allergen_items", s.observer)
	ledger := newCountLedger(model.TableAllergenCategories)
	created := make([]dto.AllergenItemResponse, 0, len(rows))
	for _, it := range rows {
		if err := w.reserve(1); err != nil {
			return nil, w.fail("bulk create allergen items", err)
		}
		w.batch().Create(model.TableAllergenItems, it.ID, it)
		ledger.add(it.CategoryID, 1)
		created = append(created, mapAllergenItem(*it))
	}
	if err := w.flush(); err != nil {
		return nil, w.fail("bulk create allergen items", err)
	}
	if err := w.flushLedger(ledger); err != nil {
		return nil, w.fail("bulk create allergen items", err)
	}
	w.done()

	return &dto.BulkCreateResponse{Created: len(created), BatchesCommitted: w.committed, Items: created}, nil
}
