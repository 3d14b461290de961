package service

import (
	"context"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Migrator copies legacy flat items forward into base items plus
// assignments.
type Migrator interface {
	MigrateLegacy(ctx context.Context) (*dto.MigrationResult, error)
}

type migrator struct {
	repos     *repository.Repositories
	batchSize int
	observer  ImportObserver
}

func NewMigrator(repos *repository.Repositories, batchSize int, obs ImportObserver) Migrator {
	if obs == nil {
		obs = noopObserver{}
	}
	return &migrator{repos: repos, batchSize: batchSize, observer: obs}
}

// MigrateLegacy moves every legacy row in chunks. Each chunk creates the base
// items and assignments, deletes the migrated legacy rows and applies the net
// count change of its categories in one batch, so an interrupted run leaves
// consistent counts and can simply be run again.
func (m *migrator) MigrateLegacy(ctx context.Context) (*dto.MigrationResult, error) {
	items := m.repos.Items
	legacy, err := items.ListLegacy(ctx)
	if err != nil {
		return nil, apierror.Upstream("list legacy items", err)
	}
	res := &dto.MigrationResult{LegacyRead: len(legacy)}
	if len(legacy) == 0 {
		return res, nil
	}

	base, err := items.ListBaseItems(ctx)
	if err != nil {
		return nil, apierror.Upstream("list base items", err)
	}
	assignments, err := items.ListAssignments(ctx)
	if err != nil {
		return nil, apierror.Upstream("list assignments", err)
	}
	byPrint := make(map[string]uuid.UUID, len(base))
	baseIDs := make(map[uuid.UUID]bool, len(base))
	for _, it := range base {
		baseIDs[it.ID] = true
		fp := fingerprint(it.Name, model.ExtractNutrition(it.Nutrition, it.Attributes).ToMap())
		if _, ok := byPrint[fp]; !ok {
			byPrint[fp] = it.ID
		}
	}
	pairs := make(map[[2]uuid.UUID]bool, len(assignments))
	for _, a := range assignments {
		pairs[[2]uuid.UUID{a.ItemID, a.CategoryID}] = true
	}

	w := newChunkWriter(ctx, m.repos.Writer, m.batchSize, "migrate_legacy", m.observer)
	ledger := newCountLedger(model.TableCategories)
	flush := func() error {
		ledger.flushInto(w.batch())
		return w.flush()
	}

	now := time.Now().UTC()
	for _, old := range legacy {
		// three row writes plus up to two new count ops must fit with the
		// ledger's pending increments
		if w.batch().Len()+ledger.pending()+5 > w.limit {
			if err := flush(); err != nil {
				return nil, w.fail("migrate legacy items", err)
			}
		}

		nutrition := model.ExtractNutrition(old.Nutrition, old.Attributes)
		allergens := model.ExtractAllergens(old.Allergens, old.Attributes)
		fp := fingerprint(old.Name, nutrition.ToMap())

		itemID, dup := byPrint[fp]
		switch {
		case dup:
			res.DuplicatesMerged++
		case baseIDs[old.ID]:
			itemID = old.ID
			byPrint[fp] = itemID
		default:
			itemID = old.ID
			byPrint[fp] = itemID
			baseIDs[itemID] = true
			w.batch().Create(model.TableBaseItems, itemID, &model.BaseItem{
				ID:          itemID,
				Name:        old.Name,
				Nutrition:   nutrition.ToMap(),
				Allergens:   allergens.ToMap(),
				Attributes:  old.Attributes,
				ServingSize: old.ServingSize,
				IsActive:    old.IsActive,
				CreatedAt:   old.CreatedAt,
				UpdatedAt:   now,
			})
			res.BaseItemsCreated++
		}

		if old.CategoryID != uuid.Nil {
			pair := [2]uuid.UUID{itemID, old.CategoryID}
			if !pairs[pair] {
				pairs[pair] = true
				a := model.NewAssignment(itemID, old.CategoryID, now)
				w.batch().Create(model.TableAssignments, a.ID, a)
				ledger.add(old.CategoryID, 1)
				res.AssignmentsCreated++
			}
		}

		w.batch().Delete(model.TableLegacyItems, old.ID)
		ledger.add(old.CategoryID, -1)
	}
	if err := flush(); err != nil {
		return nil, w.fail("migrate legacy items", err)
	}
	w.done()

	res.BatchesCommitted = w.committed
	log.Info().
		Int("legacy_read", res.LegacyRead).
		Int("base_items_created", res.BaseItemsCreated).
		Int("assignments_created", res.AssignmentsCreated).
		Int("duplicates_merged", res.DuplicatesMerged).
		Int("batches", res.BatchesCommitted).
		Msg("legacy migration finished")
	return res, nil
}
