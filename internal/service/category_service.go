package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
)

// ErrHasDependents is the message of the conflict returned when a category
// still has items.
const ErrHasDependents = "Cannot delete category with existing items"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CategoryService manages one category table. It is instantiated once for
// menu categories and once for allergen categories.
type CategoryService interface {
	List(ctx context.Context) ([]dto.CategoryResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.CategoryResponse, error)
	Create(ctx context.Context, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateCategoryRequest) (*dto.CategoryResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// categoryScope describes the rows that depend on a category table.
// countDependents backs the delete guard; denormalized lists the rows that
// embed the category name and must follow a rename.
type categoryScope struct {
	label           string
	countDependents func(ctx context.Context, id uuid.UUID) (int64, error)
	denormalized    func(ctx context.Context, id uuid.UUID) (string, []uuid.UUID, error)
}

type categoryService struct {
	repo   repository.CategoryRepository
	writer repository.BatchWriter
	scope  categoryScope
}

// NewCategoryService serves menu categories. Dependents are assignment rows
// plus any legacy items still pointing at the category.
func NewCategoryService(repos *repository.Repositories) CategoryService {
	items := repos.Items
	return &categoryService{
		repo:   repos.Categories,
		writer: repos.Writer,
		scope: categoryScope{
			label: "Category",
			countDependents: func(ctx context.Context, id uuid.UUID) (int64, error) {
				n, err := items.CountAssignmentsByCategory(ctx, id)
				if err != nil {
					return 0, err
				}
				legacy, err := items.CountLegacyByCategory(ctx, id)
				return n + legacy, err
			},
			denormalized: func(ctx context.Context, id uuid.UUID) (string, []uuid.UUID, error) {
				list, err := items.ListLegacyByCategory(ctx, id)
				if err != nil {
					return "", nil, err
				}
				ids := make([]uuid.UUID, len(list))
				for i, it := range list {
					ids[i] = it.ID
				}
				return model.TableLegacyItems, ids, nil
			},
		},
	}
}

// NewAllergenCategoryService serves allergen categories, whose dependents are
// allergen items.
func NewAllergenCategoryService(repos *repository.Repositories) CategoryService {
	items := repos.AllergenItems
	return &categoryService{
		repo:   repos.AllergenCategories,
		writer: repos.Writer,
		scope: categoryScope{
			label:           "Allergen category",
			countDependents: items.CountByCategory,
			denormalized: func(ctx context.Context, id uuid.UUID) (string, []uuid.UUID, error) {
				list, err := items.ListByCategory(ctx, id)
				if err != nil {
					return "", nil, err
				}
				ids := make([]uuid.UUID, len(list))
				for i, it := range list {
					ids[i] = it.ID
				}
				return model.TableAllergenItems, ids, nil
			},
		},
	}
}

func mapCategory(c model.Category) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		DisplayOrder: c.DisplayOrder,
		IsActive:     c.IsActive,
		ItemCount:    c.ItemCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (s *categoryService) List(ctx context.Context) ([]dto.CategoryResponse, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apierror.Upstream("list "+s.repo.Table(), err)
	}
	out := make([]dto.CategoryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, mapCategory(c))
	}
	return out, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*dto.CategoryResponse, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := mapCategory(*c)
	return &resp, nil
}

func (s *categoryService) find(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.NotFound(s.scope.label)
		}
		return nil, apierror.Upstream("find "+s.repo.Table(), err)
	}
	return c, nil
}

func (s *categoryService) Create(ctx context.Context, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)
	slug := strings.TrimSpace(req.Slug)
	if name == "" {
		return nil, apierror.Validation("name is required")
	}
	if slug == "" {
		return nil, apierror.Validation("slug is required")
	}
	if err := s.checkSlug(ctx, slug, uuid.Nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &model.Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.DisplayOrder != nil {
		c.DisplayOrder = *req.DisplayOrder
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	b := repository.NewBatch()
	b.Create(s.repo.Table(), c.ID, c)
	if err := s.writer.Commit(ctx, b); err != nil {
		return nil, apierror.Upstream("create "+s.repo.Table(), err)
	}
	resp := mapCategory(*c)
	return &resp, nil
}

// Update applies only the fields present in req. A rename is copied onto
// every row that embeds the category name.
func (s *categoryService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateCategoryRequest) (*dto.CategoryResponse, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"updated_at": now}
	renamed := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apierror.Validation("name cannot be empty")
		}
		renamed = name != c.Name
		c.Name = name
		updates["name"] = name
	}
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if slug != c.Slug {
			if err := s.checkSlug(ctx, slug, c.ID); err != nil {
				return nil, err
			}
		}
		c.Slug = slug
		updates["slug"] = slug
	}
	if req.Description != nil {
		c.Description = req.Description
		updates["description"] = *req.Description
	}
	if req.DisplayOrder != nil {
		c.DisplayOrder = *req.DisplayOrder
		updates["display_order"] = *req.DisplayOrder
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
		updates["is_active"] = *req.IsActive
	}
	c.UpdatedAt = now

	var (
		depTable string
		depIDs   []uuid.UUID
	)
	if renamed {
		depTable, depIDs, err = s.scope.denormalized(ctx, id)
		if err != nil {
			return nil, apierror.Upstream("list category dependents", err)
		}
	}

	w := newChunkWriter(ctx, s.writer, repository.MaxBatchWrites, "category_update", nil)
	w.batch().Update(s.repo.Table(), id, updates)
	for _, depID := range depIDs {
		if err := w.reserve(1); err != nil {
			return nil, w.fail("update "+s.repo.Table(), err)
		}
		w.batch().Update(depTable, depID, map[string]interface{}{"category_name": c.Name, "updated_at": now})
	}
	if err := w.flush(); err != nil {
		return nil, w.fail("update "+s.repo.Table(), err)
	}

	resp := mapCategory(*c)
	return &resp, nil
}

// Delete refuses while any item still references the category.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	n, err := s.scope.countDependents(ctx, id)
	if err != nil {
		return apierror.Upstream("count category dependents", err)
	}
	if n > 0 {
		return apierror.Conflict(ErrHasDependents)
	}
	b := repository.NewBatch()
	b.Delete(s.repo.Table(), id)
	if err := s.writer.Commit(ctx, b); err != nil {
		return apierror.Upstream("delete "+s.repo.Table(), err)
	}
	return nil
}

func (s *categoryService) checkSlug(ctx context.Context, slug string, self uuid.UUID) error {
	if !slugPattern.MatchString(slug) {
		return apierror.Validation("slug must contain only lowercase letters, digits and single hyphens")
	}
	existing, err := s.repo.FindBySlug(ctx, slug)
	switch {
	case err == nil && existing.ID != self:
		return apierror.Validationf("slug %q is already in use", slug)
	case err != nil && !isNotFound(err):
		return apierror.Upstream("find "+s.repo.Table()+" by slug", err)
	}
	return nil
}

// slugify derives a URL-safe slug from a display name.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == '\'' || r == '’':
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "category"
	}
	return s
}
