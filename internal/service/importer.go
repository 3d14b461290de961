package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Importer ingests nutrition and allergen export files. Categories are
// resolved by name (created when missing), rows describing the same physical
// item are merged under one fingerprint, and writes are chunked into atomic
// batches. A failure after the first committed batch is a PartialImport.
type Importer interface {
	ImportNutrition(ctx context.Context, raw []byte) (*dto.ImportResult, error)
	ImportAllergens(ctx context.Context, raw []byte) (*dto.ImportResult, error)
}

type importer struct {
	repos     *repository.Repositories
	batchSize int
	observer  ImportObserver
}

func NewImporter(repos *repository.Repositories, batchSize int, obs ImportObserver) Importer {
	if obs == nil {
		obs = noopObserver{}
	}
	return &importer{repos: repos, batchSize: batchSize, observer: obs}
}

// ParseImportFile accepts a bare array of rows or an object with an items
// field. Every row must name an item and a category.
func ParseImportFile(raw []byte) (*dto.ImportFile, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, apierror.Validation("import file is empty")
	}

	var file dto.ImportFile
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &file.Items); err != nil {
			return nil, apierror.Validationf("malformed import file: %v", err)
		}
	} else {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, apierror.Validationf("malformed import file: %v", err)
		}
		if _, ok := probe["items"]; !ok {
			return nil, apierror.Validation("import file must be an array or an object with an items field")
		}
		if err := json.Unmarshal(trimmed, &file); err != nil {
			return nil, apierror.Validationf("malformed import file: %v", err)
		}
	}

	for i, row := range file.Items {
		if strings.TrimSpace(row.Name) == "" {
			return nil, apierror.Validationf("items[%d]: name is required", i)
		}
		if strings.TrimSpace(row.CategoryLabel()) == "" {
			return nil, apierror.Validationf("items[%d]: category is required", i)
		}
	}
	return &file, nil
}

// fingerprint identifies a physical item: its lowercased name plus the
// canonical JSON of its full template-merged payload.
func fingerprint(name string, payload map[string]interface{}) string {
	b, _ := json.Marshal(payload)
	return strings.ToLower(strings.TrimSpace(name)) + "|" + string(b)
}

// categoryNames lists the distinct category names of a file in first-seen
// order, declared categories first.
func categoryNames(file *dto.ImportFile) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}
	for _, c := range file.Categories {
		add(c)
	}
	for _, row := range file.Items {
		add(row.CategoryLabel())
	}
	return out
}

// resolveCategories maps every name to a category, creating the missing ones
// through w. Returns lowercased name -> category and the number created.
func resolveCategories(ctx context.Context, repo repository.CategoryRepository, w *chunkWriter, names []string) (map[string]model.Category, int, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return nil, 0, apierror.Upstream("list "+repo.Table(), err)
	}
	byName := make(map[string]model.Category, len(existing)+len(names))
	slugs := make(map[string]bool, len(existing)+len(names))
	for _, c := range existing {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if _, dup := byName[key]; !dup {
			byName[key] = c
		}
		slugs[c.Slug] = true
	}

	created := 0
	now := time.Now().UTC()
	for _, name := range names {
		key := strings.ToLower(name)
		if _, ok := byName[key]; ok {
			continue
		}
		c := model.Category{
			ID:           uuid.New(),
			Name:         name,
			Slug:         uniqueSlug(slugify(name), slugs),
			DisplayOrder: len(existing) + created + 1,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := w.reserve(1); err != nil {
			return nil, created, w.fail("create categories", err)
		}
		w.batch().Create(repo.Table(), c.ID, &c)
		byName[key] = c
		created++
	}
	if err := w.flush(); err != nil {
		return nil, created, w.fail("create categories", err)
	}
	return byName, created, nil
}

func uniqueSlug(base string, taken map[string]bool) string {
	slug := base
	for n := 2; taken[slug]; n++ {
		slug = base + "-" + strconv.Itoa(n)
	}
	taken[slug] = true
	return slug
}

func (s *importer) ImportNutrition(ctx context.Context, raw []byte) (*dto.ImportResult, error) {
	file, err := ParseImportFile(raw)
	if err != nil {
		return nil, err
	}
	items := s.repos.Items

	// Seed the dedup state from what is already stored so a re-run merges
	// into existing base items and skips existing assignments.
	base, err := items.ListBaseItems(ctx)
	if err != nil {
		return nil, apierror.Upstream("list base items", err)
	}
	assignments, err := items.ListAssignments(ctx)
	if err != nil {
		return nil, apierror.Upstream("list assignments", err)
	}
	byPrint := make(map[string]uuid.UUID, len(base))
	for _, it := range base {
		fp := fingerprint(it.Name, model.ExtractNutrition(it.Nutrition, it.Attributes).ToMap())
		if _, ok := byPrint[fp]; !ok {
			byPrint[fp] = it.ID
		}
	}
	pairs := make(map[[2]uuid.UUID]bool, len(assignments))
	for _, a := range assignments {
		pairs[[2]uuid.UUID{a.ItemID, a.CategoryID}] = true
	}

	w := newChunkWriter(ctx, s.repos.Writer, s.batchSize, "import_nutrition", s.observer)
	cats, created, err := resolveCategories(ctx, s.repos.Categories, w, categoryNames(file))
	if err != nil {
		return nil, err
	}

	res := &dto.ImportResult{Rows: len(file.Items), CategoriesCreated: created}
	ledger := newCountLedger(model.TableCategories)
	now := time.Now().UTC()
	for _, row := range file.Items {
		cat := cats[strings.ToLower(strings.TrimSpace(row.CategoryLabel()))]
		nutrition := model.MergeNutrition(model.NutritionData{}, row.Nutrition).ToMap()
		fp := fingerprint(row.Name, nutrition)

		if err := w.reserve(2); err != nil {
			return nil, w.fail("import nutrition", err)
		}
		itemID, dup := byPrint[fp]
		if dup {
			res.DuplicatesMerged++
		} else {
			itemID = uuid.New()
			byPrint[fp] = itemID
			w.batch().Create(model.TableBaseItems, itemID, &model.BaseItem{
				ID:        itemID,
				Name:      strings.TrimSpace(row.Name),
				Nutrition: datatypes.JSONMap(nutrition),
				Allergens: datatypes.JSONMap(model.MergeAllergens(model.AllergenFlags{}, row.Allergens).ToMap()),
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			})
			res.ItemsCreated++
		}

		pair := [2]uuid.UUID{itemID, cat.ID}
		if pairs[pair] {
			continue
		}
		pairs[pair] = true
		a := model.NewAssignment(itemID, cat.ID, now)
		w.batch().Create(model.TableAssignments, a.ID, a)
		ledger.add(cat.ID, 1)
		res.AssignmentsCreated++
	}
	if err := w.flush(); err != nil {
		return nil, w.fail("import nutrition", err)
	}
	if err := w.flushLedger(ledger); err != nil {
		return nil, w.fail("import nutrition", err)
	}
	w.done()

	res.BatchesCommitted = w.committed
	log.Info().
		Int("rows", res.Rows).
		Int("categories_created", res.CategoriesCreated).
		Int("items_created", res.ItemsCreated).
		Int("assignments_created", res.AssignmentsCreated).
		Int("duplicates_merged", res.DuplicatesMerged).
		Int("batches", res.BatchesCommitted).
		Msg("nutrition import finished")
	return res, nil
}

// ImportAllergens writes denormalized allergen items. Rows with the same
// fingerprint in the same category collapse into one item.
func (s *importer) ImportAllergens(ctx context.Context, raw []byte) (*dto.ImportResult, error) {
	file, err := ParseImportFile(raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.AllergenItems.List(ctx)
	if err != nil {
		return nil, apierror.Upstream("list allergen items", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, it := range existing {
		fp := fingerprint(it.Name, model.ExtractAllergens(it.Allergens, it.Attributes).ToMap())
		seen[fp+"|"+it.CategoryID.String()] = true
	}

	w := newChunkWriter(ctx, s.repos.Writer, s.batchSize, "import_allergens", s.observer)
	cats, created, err := resolveCategories(ctx, s.repos.AllergenCategories, w, categoryNames(file))
	if err != nil {
		return nil, err
	}

	res := &dto.ImportResult{Rows: len(file.Items), CategoriesCreated: created}
	ledger := newCountLedger(model.TableAllergenCategories)
	now := time.Now().UTC()
	for _, row := range file.Items {
		cat := cats[strings.ToLower(strings.TrimSpace(row.CategoryLabel()))]
		allergens := model.MergeAllergens(model.AllergenFlags{}, row.Allergens).ToMap()
		key := fingerprint(row.Name, allergens) + "|" + cat.ID.String()
		if seen[key] {
			res.DuplicatesMerged++
			continue
		}
		seen[key] = true

		if err := w.reserve(1); err != nil {
			return nil, w.fail("import allergens", err)
		}
		it := &model.AllergenItem{
			ID:           uuid.New(),
			Name:         strings.TrimSpace(row.Name),
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Allergens:    datatypes.JSONMap(allergens),
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		w.batch().Create(model.TableAllergenItems, it.ID, it)
		ledger.add(cat.ID, 1)
		res.ItemsCreated++
		res.AssignmentsCreated++
	}
	if err := w.flush(); err != nil {
		return nil, w.fail("import allergens", err)
	}
	if err := w.flushLedger(ledger); err != nil {
		return nil, w.fail("import allergens", err)
	}
	w.done()

	res.BatchesCommitted = w.committed
	log.Info().
		Int("rows", res.Rows).
		Int("categories_created", res.CategoriesCreated).
		Int("items_created", res.ItemsCreated).
		Int("duplicates_merged", res.DuplicatesMerged).
		Int("batches", res.BatchesCommitted).
		Msg("allergen import finished")
	return res, nil
}
