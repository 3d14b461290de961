//go:build integration

package repository_test

// Runs the catalog services against a real Postgres.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"testing"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) (*gorm.DB, *repository.Repositories) {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("nutrition_test"),
		tcPostgres.WithUsername("nutrition"),
		tcPostgres.WithPassword("nutrition"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	return db, repository.NewRepositories(db)
}

func TestPostgres_ImportCountsAndBlockedDelete(t *testing.T) {
	ctx := context.Background()
	_, repos := setupPostgres(t)
	cat := service.NewCatalog(repos, &config.Config{SchemaMode: config.SchemaAuto, ImportBatchSize: 450, AllowedEmailDomain: "caferio.com"}, nil, nil)

	res, err := cat.Importer.ImportNutrition(ctx, []byte(`[
		{"name": "Taco", "category": "Entrees", "nutrition": {"calories": 300}},
		{"name": "Taco", "category": "Sides", "nutrition": {"calories": 300}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemsCreated)
	assert.Equal(t, 2, res.AssignmentsCreated)

	cats, err := cat.Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	for _, c := range cats {
		assert.Equal(t, 1, c.ItemCount, c.Name)
	}

	err = cat.Categories.Delete(ctx, uuid.MustParse(cats[0].ID))
	require.Error(t, err)
	again, err := cat.Categories.List(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2)

	report, err := cat.Reconciler.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Drift)
}

func TestPostgres_BatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	_, repos := setupPostgres(t)

	id := uuid.New()
	now := time.Now().UTC()
	b := repository.NewBatch()
	b.Create(model.TableCategories, id, &model.Category{ID: id, Name: "Entrees", Slug: "entrees", IsActive: true, CreatedAt: now, UpdatedAt: now})
	// duplicate slug violates the unique index and must roll back the first insert too
	dup := uuid.New()
	b.Create(model.TableCategories, dup, &model.Category{ID: dup, Name: "Entrees 2", Slug: "entrees", IsActive: true, CreatedAt: now, UpdatedAt: now})

	require.Error(t, repos.Writer.Commit(ctx, b))
	_, err := repos.Categories.FindByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgres_LegacyMigration(t *testing.T) {
	ctx := context.Background()
	db, repos := setupPostgres(t)
	cat := service.NewCatalog(repos, &config.Config{SchemaMode: config.SchemaAuto, ImportBatchSize: 450}, nil, nil)

	c, err := cat.Categories.Create(ctx, dto.CreateCategoryRequest{Name: "Entrees", Slug: "entrees"})
	require.NoError(t, err)
	catID := uuid.MustParse(c.ID)
	for _, name := range []string{"Taco", "Burrito"} {
		require.NoError(t, db.Create(&model.LegacyItem{
			ID: uuid.New(), Name: name, CategoryID: catID, CategoryName: "Entrees",
			Nutrition: datatypes.JSONMap{"calories": 300}, IsActive: true,
		}).Error)
	}
	require.NoError(t, db.Table(model.TableCategories).Where("id = ?", catID).Update("item_count", 2).Error)

	list, err := cat.Reader.ListItems(ctx, dto.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2, "legacy rows are served before migration")

	res, err := cat.Migrator.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.BaseItemsCreated)

	got, err := cat.Categories.Get(ctx, catID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ItemCount)
	n, err := repos.Items.CountLegacy(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
