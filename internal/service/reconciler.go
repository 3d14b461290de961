package service

import (
	"context"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Reconciler recomputes category item counts from the rows that reference
// them and optionally writes the corrections. It closes the drift left by
// interrupted bulk writes and concurrent reassignments.
type Reconciler interface {
	Reconcile(ctx context.Context, apply bool) (*dto.ReconcileReport, error)
}

type reconciler struct {
	repos *repository.Repositories
}

func NewReconciler(repos *repository.Repositories) Reconciler {
	return &reconciler{repos: repos}
}

func (r *reconciler) Reconcile(ctx context.Context, apply bool) (*dto.ReconcileReport, error) {
	assigned, err := r.repos.Items.CountAssignmentsGrouped(ctx)
	if err != nil {
		return nil, apierror.Upstream("count assignments", err)
	}
	legacy, err := r.repos.Items.CountLegacyGrouped(ctx)
	if err != nil {
		return nil, apierror.Upstream("count legacy items", err)
	}
	menuActual := make(map[uuid.UUID]int64, len(assigned)+len(legacy))
	for id, n := range assigned {
		menuActual[id] += n
	}
	for id, n := range legacy {
		menuActual[id] += n
	}
	allergenActual, err := r.repos.AllergenItems.CountGrouped(ctx)
	if err != nil {
		return nil, apierror.Upstream("count allergen items", err)
	}

	report := &dto.ReconcileReport{Drift: []dto.CountDrift{}}
	if err := r.compare(ctx, r.repos.Categories, menuActual, report); err != nil {
		return nil, err
	}
	if err := r.compare(ctx, r.repos.AllergenCategories, allergenActual, report); err != nil {
		return nil, err
	}

	if apply && len(report.Drift) > 0 {
		w := newChunkWriter(ctx, r.repos.Writer, repository.MaxBatchWrites, "reconcile", nil)
		now := time.Now().UTC()
		for _, d := range report.Drift {
			if err := w.reserve(1); err != nil {
				return nil, w.fail("apply count corrections", err)
			}
			id, _ := uuid.Parse(d.CategoryID)
			w.batch().Update(d.Table, id, map[string]interface{}{itemCountColumn: d.Actual, "updated_at": now})
		}
		if err := w.flush(); err != nil {
			return nil, w.fail("apply count corrections", err)
		}
		report.Applied = true
	}

	ev := log.Info()
	if len(report.Drift) > 0 {
		ev = log.Warn()
	}
	ev.Int("checked", report.Checked).Int("drifted", len(report.Drift)).Bool("applied", report.Applied).Msg("category counts reconciled")
	return report, nil
}

func (r *reconciler) compare(ctx context.Context, repo repository.CategoryRepository, actual map[uuid.UUID]int64, report *dto.ReconcileReport) error {
	cats, err := repo.List(ctx)
	if err != nil {
		return apierror.Upstream("list "+repo.Table(), err)
	}
	for _, c := range cats {
		report.Checked++
		want := int(actual[c.ID])
		if c.ItemCount != want {
			report.Drift = append(report.Drift, dto.CountDrift{
				Table:      repo.Table(),
				CategoryID: c.ID.String(),
				Name:       c.Name,
				Cached:     c.ItemCount,
				Actual:     want,
			})
		}
	}
	return nil
}

