package infra

import (
	"fmt"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, creates or updates
// every catalog table, then applies the idempotent SQL patches that GORM cannot
// express (unique indexes on the shared category shape, partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates the schema. Integration tests call it directly on a
// container database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Category{},
		&model.LegacyItem{},
		&model.BaseItem{},
		&model.ItemCategoryAssignment{},
		&model.AllergenItem{},
		&model.APIKey{},
		&model.User{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	// Allergen categories share the Category struct, so TableName() cannot
	// route them.
	if err := db.Table(model.TableAllergenCategories).AutoMigrate(&model.Category{}); err != nil {
		return fmt.Errorf("AutoMigrate %s: %w", model.TableAllergenCategories, err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements. Each uses IF NOT EXISTS so
// re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// slugs are unique per category table
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_slug ON categories (slug)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_allergen_categories_slug ON allergen_categories (slug)`,
		// one assignment per (item, category) pair
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_item_category
		    ON item_category_assignments (item_id, category_id)`,
		// public listings only read active rows
		`CREATE INDEX IF NOT EXISTS idx_base_items_active
		    ON base_items (name) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_items_active
		    ON items (category_id, name) WHERE is_active`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
