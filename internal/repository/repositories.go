package repository

import (
	"context"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"gorm.io/gorm"
)

// Repositories bundles every store dependency of the catalog services.
// Ping reports store reachability for the health endpoint.
type Repositories struct {
	Categories         CategoryRepository
	AllergenCategories CategoryRepository
	Items              ItemRepository
	AllergenItems      AllergenItemRepository
	APIKeys            APIKeyRepository
	Users              UserRepository
	Writer             BatchWriter
	Ping               func(ctx context.Context) error
}

// NewRepositories wires the GORM implementations.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Categories:         NewCategoryRepository(db, model.TableCategories),
		AllergenCategories: NewCategoryRepository(db, model.TableAllergenCategories),
		Items:              NewItemRepository(db),
		AllergenItems:      NewAllergenItemRepository(db),
		APIKeys:            NewAPIKeyRepository(db),
		Users:              NewUserRepository(db),
		Writer:             NewBatchWriter(db),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}
