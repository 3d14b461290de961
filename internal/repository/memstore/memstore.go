// Package memstore is an in-process implementation of every repository
// interface plus an atomic BatchWriter. It backs the test suites and the
// DATABASE_URL=memory:// development mode.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm/schema"
)

type state struct {
	categories    map[string]map[uuid.UUID]model.Category
	legacy        map[uuid.UUID]model.LegacyItem
	base          map[uuid.UUID]model.BaseItem
	assignments   map[uuid.UUID]model.ItemCategoryAssignment
	allergenItems map[uuid.UUID]model.AllergenItem
}

func newState() state {
	return state{
		categories: map[string]map[uuid.UUID]model.Category{
			model.TableCategories:         {},
			model.TableAllergenCategories: {},
		},
		legacy:        map[uuid.UUID]model.LegacyItem{},
		base:          map[uuid.UUID]model.BaseItem{},
		assignments:   map[uuid.UUID]model.ItemCategoryAssignment{},
		allergenItems: map[uuid.UUID]model.AllergenItem{},
	}
}

func (s state) clone() state {
	c := state{
		categories:    make(map[string]map[uuid.UUID]model.Category, len(s.categories)),
		legacy:        make(map[uuid.UUID]model.LegacyItem, len(s.legacy)),
		base:          make(map[uuid.UUID]model.BaseItem, len(s.base)),
		assignments:   make(map[uuid.UUID]model.ItemCategoryAssignment, len(s.assignments)),
		allergenItems: make(map[uuid.UUID]model.AllergenItem, len(s.allergenItems)),
	}
	for table, rows := range s.categories {
		m := make(map[uuid.UUID]model.Category, len(rows))
		for k, v := range rows {
			m[k] = v
		}
		c.categories[table] = m
	}
	for k, v := range s.legacy {
		c.legacy[k] = v
	}
	for k, v := range s.base {
		c.base[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.allergenItems {
		c.allergenItems[k] = v
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	st    state
	keys  map[uuid.UUID]model.APIKey
	users map[string]model.User

	attempts int
	commits  int
	failAt   map[int]error
}

func New() *Store {
	return &Store{
		st:     newState(),
		keys:   map[uuid.UUID]model.APIKey{},
		users:  map[string]model.User{},
		failAt: map[int]error{},
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Categories:         &categoryRepo{s: s, table: model.TableCategories},
		AllergenCategories: &categoryRepo{s: s, table: model.TableAllergenCategories},
		Items:              &itemRepo{s: s},
		AllergenItems:      &allergenItemRepo{s: s},
		APIKeys:            &apiKeyRepo{s: s},
		Users:              &userRepo{s: s},
		Writer:             s,
		Ping:               func(context.Context) error { return nil },
	}
}

// FailCommit makes the n-th commit attempt from now (1-based) fail with err
// without applying anything.
func (s *Store) FailCommit(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[s.attempts+n] = err
}

// Commits returns the number of successfully applied batches.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// Commit applies b to a copy of the state and swaps it in only if every op
// succeeded.
func (s *Store) Commit(_ context.Context, b *repository.Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if b.Len() > repository.MaxBatchWrites {
		return repository.ErrBatchTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if err, ok := s.failAt[s.attempts]; ok {
		delete(s.failAt, s.attempts)
		return err
	}

	next := s.st.clone()
	now := time.Now().UTC()
	for i, op := range b.Ops() {
		if err := next.apply(op, now); err != nil {
			return fmt.Errorf("batch op %d (%s %s): %w", i, op.Kind, op.Table, err)
		}
	}
	s.st = next
	s.commits++
	return nil
}

func (st *state) apply(op repository.Op, now time.Time) error {
	switch op.Kind {
	case repository.OpCreate:
		return st.create(op, now)
	case repository.OpDelete:
		st.remove(op.Table, op.ID)
		return nil
	case repository.OpUpdate:
		return st.mutate(op.Table, op.ID, func(dst interface{}) error {
			return applyUpdates(dst, op.Updates)
		})
	case repository.OpIncrement:
		return st.mutate(op.Table, op.ID, func(dst interface{}) error {
			return applyIncrement(dst, op.Column, op.Delta)
		})
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func (st *state) create(op repository.Op, now time.Time) error {
	dup := fmt.Errorf("document %s already exists", op.ID)
	switch v := op.Value.(type) {
	case *model.Category:
		rows, ok := st.categories[op.Table]
		if !ok {
			return fmt.Errorf("unknown category table %q", op.Table)
		}
		if _, exists := rows[v.ID]; exists {
			return dup
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, now)
		rows[v.ID] = *v
	case *model.LegacyItem:
		if _, exists := st.legacy[v.ID]; exists {
			return dup
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, now)
		st.legacy[v.ID] = *v
	case *model.BaseItem:
		if _, exists := st.base[v.ID]; exists {
			return dup
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, now)
		st.base[v.ID] = *v
	case *model.ItemCategoryAssignment:
		if _, exists := st.assignments[v.ID]; exists {
			return dup
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, now)
		st.assignments[v.ID] = *v
	case *model.AllergenItem:
		if _, exists := st.allergenItems[v.ID]; exists {
			return dup
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, now)
		st.allergenItems[v.ID] = *v
	default:
		return fmt.Errorf("unsupported document type %T", op.Value)
	}
	return nil
}

func (st *state) remove(table string, id uuid.UUID) {
	switch table {
	case model.TableCategories, model.TableAllergenCategories:
		delete(st.categories[table], id)
	case model.TableLegacyItems:
		delete(st.legacy, id)
	case model.TableBaseItems:
		delete(st.base, id)
	case model.TableAssignments:
		delete(st.assignments, id)
	case model.TableAllergenItems:
		delete(st.allergenItems, id)
	}
}

// mutate runs fn on a copy of the document and stores it back. Missing
// documents are skipped, matching an UPDATE that touches zero rows.
func (st *state) mutate(table string, id uuid.UUID, fn func(dst interface{}) error) error {
	switch table {
	case model.TableCategories, model.TableAllergenCategories:
		v, ok := st.categories[table][id]
		if !ok {
			return nil
		}
		if err := fn(&v); err != nil {
			return err
		}
		st.categories[table][id] = v
	case model.TableLegacyItems:
		v, ok := st.legacy[id]
		if !ok {
			return nil
		}
		if err := fn(&v); err != nil {
			return err
		}
		st.legacy[id] = v
	case model.TableBaseItems:
		v, ok := st.base[id]
		if !ok {
			return nil
		}
		if err := fn(&v); err != nil {
			return err
		}
		st.base[id] = v
	case model.TableAssignments:
		v, ok := st.assignments[id]
		if !ok {
			return nil
		}
		if err := fn(&v); err != nil {
			return err
		}
		st.assignments[id] = v
	case model.TableAllergenItems:
		v, ok := st.allergenItems[id]
		if !ok {
			return nil
		}
		if err := fn(&v); err != nil {
			return err
		}
		st.allergenItems[id] = v
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

var naming = schema.NamingStrategy{}

// fieldByColumn finds the struct field gorm maps to column.
func fieldByColumn(v reflect.Value, column string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if naming.ColumnName("", t.Field(i).Name) == column {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func applyUpdates(dst interface{}, updates map[string]interface{}) error {
	v := reflect.ValueOf(dst).Elem()
	for column, val := range updates {
		f, ok := fieldByColumn(v, column)
		if !ok {
			return fmt.Errorf("unknown column %q on %s", column, v.Type().Name())
		}
		if val == nil {
			f.Set(reflect.Zero(f.Type()))
			continue
		}
		rv := reflect.ValueOf(val)
		switch {
		case rv.Type().AssignableTo(f.Type()):
			f.Set(rv)
		case rv.Type().ConvertibleTo(f.Type()):
			f.Set(rv.Convert(f.Type()))
		case f.Kind() == reflect.Ptr && rv.Type().AssignableTo(f.Type().Elem()):
			p := reflect.New(f.Type().Elem())
			p.Elem().Set(rv)
			f.Set(p)
		default:
			return fmt.Errorf("column %q: cannot assign %T", column, val)
		}
	}
	return nil
}

func applyIncrement(dst interface{}, column string, delta int) error {
	v := reflect.ValueOf(dst).Elem()
	f, ok := fieldByColumn(v, column)
	if !ok || f.Kind() != reflect.Int {
		return fmt.Errorf("column %q is not an integer on %s", column, v.Type().Name())
	}
	f.SetInt(f.Int() + int64(delta))
	return nil
}

// ── Seeding helpers ───────────────────────────────────────────────────────────
// These bypass batching so tests and fixtures can build arbitrary states,
// including inconsistent ones.

func (s *Store) PutCategory(table string, c model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.categories[table][c.ID] = c
}

func (s *Store) PutLegacyItem(it model.LegacyItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.legacy[it.ID] = it
}

func (s *Store) PutBaseItem(it model.BaseItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.base[it.ID] = it
}

func (s *Store) PutAssignment(a model.ItemCategoryAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.assignments[a.ID] = a
}

func (s *Store) PutAllergenItem(it model.AllergenItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.allergenItems[it.ID] = it
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UID] = u
}

// ── Sorting helpers ───────────────────────────────────────────────────────────

func sortCategories(list []model.Category) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].DisplayOrder != list[j].DisplayOrder {
			return list[i].DisplayOrder < list[j].DisplayOrder
		}
		return list[i].Name < list[j].Name
	})
}

func sortAssignments(list []model.ItemCategoryAssignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return strings.Compare(list[i].ID.String(), list[j].ID.String()) < 0
	})
}
