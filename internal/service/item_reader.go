package service

import (
	"context"
	"sort"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
)

// ItemReader presents one MenuItem view over either item schema.
type ItemReader interface {
	ListItems(ctx context.Context, filter dto.ItemFilter) ([]dto.MenuItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*dto.MenuItem, error)
	ListItemsByCategory(ctx context.Context, categoryID uuid.UUID) ([]dto.MenuItem, error)
}

type itemReader struct {
	items      repository.ItemRepository
	categories repository.CategoryRepository
	schema     schemaResolver
}

func NewItemReader(items repository.ItemRepository, categories repository.CategoryRepository, schemaMode string) ItemReader {
	return &itemReader{
		items:      items,
		categories: categories,
		schema:     schemaResolver{items: items, mode: schemaMode},
	}
}

func (r *itemReader) ListItems(ctx context.Context, filter dto.ItemFilter) ([]dto.MenuItem, error) {
	var (
		list []dto.MenuItem
		err  error
	)
	if filter.CategoryID != "" {
		id, perr := uuid.Parse(filter.CategoryID)
		if perr != nil {
			return []dto.MenuItem{}, nil
		}
		list, err = r.ListItemsByCategory(ctx, id)
	} else {
		list, err = r.listAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	if filter.IsActive == "" {
		return list, nil
	}
	want := filter.IsActive == "true"
	out := make([]dto.MenuItem, 0, len(list))
	for _, it := range list {
		if it.IsActive == want {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *itemReader) listAll(ctx context.Context) ([]dto.MenuItem, error) {
	schema, err := r.schema.forRead(ctx)
	if err != nil {
		return nil, err
	}
	if schema == SchemaLegacy {
		legacy, err := r.items.ListLegacy(ctx)
		if err != nil {
			return nil, apierror.Upstream("list legacy items", err)
		}
		out := make([]dto.MenuItem, 0, len(legacy))
		for _, it := range legacy {
			out = append(out, menuItemFromLegacy(it))
		}
		return out, nil
	}

	base, err := r.items.ListBaseItems(ctx)
	if err != nil {
		return nil, apierror.Upstream("list base items", err)
	}
	assignments, err := r.items.ListAssignments(ctx)
	if err != nil {
		return nil, apierror.Upstream("list assignments", err)
	}
	names, err := r.categoryNames(ctx)
	if err != nil {
		return nil, err
	}

	// assignments arrive oldest first, so the first one seen wins
	first := make(map[uuid.UUID]uuid.UUID, len(assignments))
	for _, a := range assignments {
		if _, ok := first[a.ItemID]; !ok {
			first[a.ItemID] = a.CategoryID
		}
	}

	out := make([]dto.MenuItem, 0, len(base))
	for _, it := range base {
		catID, ok := first[it.ID]
		if !ok {
			out = append(out, menuItemFromBase(it, uuid.Nil, ""))
			continue
		}
		out = append(out, menuItemFromBase(it, catID, names[catID]))
	}
	return out, nil
}

// GetItem looks in the normalized schema first, then the legacy one.
func (r *itemReader) GetItem(ctx context.Context, id uuid.UUID) (*dto.MenuItem, error) {
	base, err := r.items.FindBaseItemByID(ctx, id)
	switch {
	case err == nil:
		assignments, err := r.items.ListAssignmentsByItem(ctx, id)
		if err != nil {
			return nil, apierror.Upstream("list item assignments", err)
		}
		if len(assignments) == 0 {
			m := menuItemFromBase(*base, uuid.Nil, "")
			return &m, nil
		}
		catID := assignments[0].CategoryID
		name := ""
		if cat, err := r.categories.FindByID(ctx, catID); err == nil {
			name = cat.Name
		} else if !isNotFound(err) {
			return nil, apierror.Upstream("find category", err)
		}
		m := menuItemFromBase(*base, catID, name)
		return &m, nil
	case !isNotFound(err):
		return nil, apierror.Upstream("find base item", err)
	}

	legacy, err := r.items.FindLegacyByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.NotFound("Item")
		}
		return nil, apierror.Upstream("find legacy item", err)
	}
	m := menuItemFromLegacy(*legacy)
	return &m, nil
}

// ListItemsByCategory fetches each assigned base item individually and sorts
// by name; the legacy path is a single filtered query.
func (r *itemReader) ListItemsByCategory(ctx context.Context, categoryID uuid.UUID) ([]dto.MenuItem, error) {
	schema, err := r.schema.forRead(ctx)
	if err != nil {
		return nil, err
	}
	if schema == SchemaLegacy {
		legacy, err := r.items.ListLegacyByCategory(ctx, categoryID)
		if err != nil {
			return nil, apierror.Upstream("list legacy items by category", err)
		}
		out := make([]dto.MenuItem, 0, len(legacy))
		for _, it := range legacy {
			out = append(out, menuItemFromLegacy(it))
		}
		return out, nil
	}

	assignments, err := r.items.ListAssignmentsByCategory(ctx, categoryID)
	if err != nil {
		return nil, apierror.Upstream("list assignments by category", err)
	}
	name := ""
	if cat, err := r.categories.FindByID(ctx, categoryID); err == nil {
		name = cat.Name
	} else if !isNotFound(err) {
		return nil, apierror.Upstream("find category", err)
	}

	out := make([]dto.MenuItem, 0, len(assignments))
	seen := make(map[uuid.UUID]bool, len(assignments))
	for _, a := range assignments {
		if seen[a.ItemID] {
			continue
		}
		seen[a.ItemID] = true
		it, err := r.items.FindBaseItemByID(ctx, a.ItemID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, apierror.Upstream("find base item", err)
		}
		out = append(out, menuItemFromBase(*it, categoryID, name))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *itemReader) categoryNames(ctx context.Context) (map[uuid.UUID]string, error) {
	cats, err := r.categories.List(ctx)
	if err != nil {
		return nil, apierror.Upstream("list categories", err)
	}
	names := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

// menuItemFromBase renders a base item under one category. A nil category id
// renders as Uncategorized.
func menuItemFromBase(it model.BaseItem, categoryID uuid.UUID, categoryName string) dto.MenuItem {
	m := dto.MenuItem{
		ID:          it.ID.String(),
		Name:        it.Name,
		IsActive:    it.IsActive,
		Nutrition:   model.ExtractNutrition(it.Nutrition, it.Attributes),
		Allergens:   model.ExtractAllergens(it.Allergens, it.Attributes),
		ServingSize: it.ServingSize,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
	setCategory(&m, categoryID, categoryName)
	return m
}

func menuItemFromLegacy(it model.LegacyItem) dto.MenuItem {
	m := dto.MenuItem{
		ID:          it.ID.String(),
		Name:        it.Name,
		IsActive:    it.IsActive,
		Nutrition:   model.ExtractNutrition(it.Nutrition, it.Attributes),
		Allergens:   model.ExtractAllergens(it.Allergens, it.Attributes),
		ServingSize: it.ServingSize,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
	setCategory(&m, it.CategoryID, it.CategoryName)
	return m
}

func setCategory(m *dto.MenuItem, id uuid.UUID, name string) {
	if id == uuid.Nil {
		m.CategoryID = ""
		m.CategoryName = model.UncategorizedName
		return
	}
	m.CategoryID = id.String()
	m.CategoryName = name
}
