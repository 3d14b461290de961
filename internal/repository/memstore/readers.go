package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
)

// ── Categories ────────────────────────────────────────────────────────────────

type categoryRepo struct {
	s     *Store
	table string
}

func (r *categoryRepo) Table() string { return r.table }

func (r *categoryRepo) List(_ context.Context) ([]model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := r.s.st.categories[r.table]
	list := make([]model.Category, 0, len(rows))
	for _, c := range rows {
		list = append(list, c)
	}
	sortCategories(list)
	return list, nil
}

func (r *categoryRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.st.categories[r.table][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *categoryRepo) FindBySlug(_ context.Context, slug string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.st.categories[r.table] {
		if c.Slug == slug {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *categoryRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.st.categories[r.table])), nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

type itemRepo struct{ s *Store }

func (r *itemRepo) CountLegacy(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.st.legacy)), nil
}

func (r *itemRepo) ListLegacy(_ context.Context) ([]model.LegacyItem, error) {
	return r.legacyWhere(func(model.LegacyItem) bool { return true }), nil
}

func (r *itemRepo) FindLegacyByID(_ context.Context, id uuid.UUID) (*model.LegacyItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.st.legacy[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r *itemRepo) ListLegacyByCategory(_ context.Context, categoryID uuid.UUID) ([]model.LegacyItem, error) {
	return r.legacyWhere(func(it model.LegacyItem) bool { return it.CategoryID == categoryID }), nil
}

func (r *itemRepo) CountLegacyByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	list, _ := r.ListLegacyByCategory(ctx, categoryID)
	return int64(len(list)), nil
}

func (r *itemRepo) CountLegacyGrouped(_ context.Context) (map[uuid.UUID]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[uuid.UUID]int64{}
	for _, it := range r.s.st.legacy {
		out[it.CategoryID]++
	}
	return out, nil
}

func (r *itemRepo) legacyWhere(keep func(model.LegacyItem) bool) []model.LegacyItem {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []model.LegacyItem{}
	for _, it := range r.s.st.legacy {
		if keep(it) {
			list = append(list, it)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return byNameThenCreated(list[i].Name, list[j].Name, list[i].CreatedAt, list[j].CreatedAt, list[i].ID, list[j].ID)
	})
	return list
}

func (r *itemRepo) CountBaseItems(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.st.base)), nil
}

func (r *itemRepo) ListBaseItems(_ context.Context) ([]model.BaseItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := make([]model.BaseItem, 0, len(r.s.st.base))
	for _, it := range r.s.st.base {
		list = append(list, it)
	}
	sort.Slice(list, func(i, j int) bool {
		return byNameThenCreated(list[i].Name, list[j].Name, list[i].CreatedAt, list[j].CreatedAt, list[i].ID, list[j].ID)
	})
	return list, nil
}

func (r *itemRepo) FindBaseItemByID(_ context.Context, id uuid.UUID) (*model.BaseItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.st.base[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r *itemRepo) ListAssignments(_ context.Context) ([]model.ItemCategoryAssignment, error) {
	return r.assignmentsWhere(func(model.ItemCategoryAssignment) bool { return true }), nil
}

func (r *itemRepo) ListAssignmentsByItem(_ context.Context, itemID uuid.UUID) ([]model.ItemCategoryAssignment, error) {
	return r.assignmentsWhere(func(a model.ItemCategoryAssignment) bool { return a.ItemID == itemID }), nil
}

func (r *itemRepo) ListAssignmentsByCategory(_ context.Context, categoryID uuid.UUID) ([]model.ItemCategoryAssignment, error) {
	return r.assignmentsWhere(func(a model.ItemCategoryAssignment) bool { return a.CategoryID == categoryID }), nil
}

func (r *itemRepo) CountAssignmentsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	list, _ := r.ListAssignmentsByCategory(ctx, categoryID)
	return int64(len(list)), nil
}

func (r *itemRepo) CountAssignmentsGrouped(_ context.Context) (map[uuid.UUID]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[uuid.UUID]int64{}
	for _, a := range r.s.st.assignments {
		out[a.CategoryID]++
	}
	return out, nil
}

func (r *itemRepo) assignmentsWhere(keep func(model.ItemCategoryAssignment) bool) []model.ItemCategoryAssignment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []model.ItemCategoryAssignment{}
	for _, a := range r.s.st.assignments {
		if keep(a) {
			list = append(list, a)
		}
	}
	sortAssignments(list)
	return list
}

// ── Allergen items ────────────────────────────────────────────────────────────

type allergenItemRepo struct{ s *Store }

func (r *allergenItemRepo) List(_ context.Context) ([]model.AllergenItem, error) {
	return r.where(func(model.AllergenItem) bool { return true }), nil
}

func (r *allergenItemRepo) FindByID(_ context.Context, id uuid.UUID) (*model.AllergenItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.st.allergenItems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r *allergenItemRepo) ListByCategory(_ context.Context, categoryID uuid.UUID) ([]model.AllergenItem, error) {
	return r.where(func(it model.AllergenItem) bool { return it.CategoryID == categoryID }), nil
}

func (r *allergenItemRepo) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	list, _ := r.ListByCategory(ctx, categoryID)
	return int64(len(list)), nil
}

func (r *allergenItemRepo) CountGrouped(_ context.Context) (map[uuid.UUID]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[uuid.UUID]int64{}
	for _, it := range r.s.st.allergenItems {
		out[it.CategoryID]++
	}
	return out, nil
}

func (r *allergenItemRepo) where(keep func(model.AllergenItem) bool) []model.AllergenItem {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []model.AllergenItem{}
	for _, it := range r.s.st.allergenItems {
		if keep(it) {
			list = append(list, it)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return byNameThenCreated(list[i].Name, list[j].Name, list[i].CreatedAt, list[j].CreatedAt, list[i].ID, list[j].ID)
	})
	return list
}

// ── Access ────────────────────────────────────────────────────────────────────

type apiKeyRepo struct{ s *Store }

func (r *apiKeyRepo) Create(_ context.Context, k *model.APIKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	stamp(&k.CreatedAt, &k.UpdatedAt, now)
	r.s.keys[k.ID] = *k
	return nil
}

func (r *apiKeyRepo) FindByPrefix(_ context.Context, prefix string) (*model.APIKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, k := range r.s.keys {
		if k.Prefix == prefix {
			k := k
			return &k, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *apiKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if k, ok := r.s.keys[id]; ok {
		k.LastUsedAt = &at
		r.s.keys[id] = k
	}
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) FindByUID(_ context.Context, uid string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) Upsert(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := r.s.users[u.UID]; ok {
		u.CreatedAt = prev.CreatedAt
	}
	stamp(&u.CreatedAt, &u.UpdatedAt, now)
	r.s.users[u.UID] = *u
	return nil
}

func byNameThenCreated(a, b string, ca, cb time.Time, ia, ib uuid.UUID) bool {
	if a != b {
		return a < b
	}
	if !ca.Equal(cb) {
		return ca.Before(cb)
	}
	return ia.String() < ib.String()
}
