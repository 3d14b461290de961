package service

import (
	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"
)

// Catalog bundles every catalog service built over one set of repositories.
type Catalog struct {
	Categories         CategoryService
	AllergenCategories CategoryService
	Reader             ItemReader
	Items              ItemService
	AllergenItems      AllergenItemService
	Importer           Importer
	Migrator           Migrator
	Reconciler         Reconciler
	Meals              MealCalculator
	Auth               Authenticator
	Access             AccessAdmin
	Policy             *AccessPolicy
}

// NewCatalog wires the services. verifier may be nil when identity tokens
// are not configured; obs may be nil.
func NewCatalog(repos *repository.Repositories, cfg *config.Config, verifier TokenVerifier, obs ImportObserver) *Catalog {
	reader := NewItemReader(repos.Items, repos.Categories, cfg.SchemaMode)
	return &Catalog{
		Categories:         NewCategoryService(repos),
		AllergenCategories: NewAllergenCategoryService(repos),
		Reader:             reader,
		Items:              NewItemService(repos, cfg.SchemaMode, cfg.ImportBatchSize, obs),
		AllergenItems:      NewAllergenItemService(repos, cfg.ImportBatchSize, obs),
		Importer:           NewImporter(repos, cfg.ImportBatchSize, obs),
		Migrator:           NewMigrator(repos, cfg.ImportBatchSize, obs),
		Reconciler:         NewReconciler(repos),
		Meals:              NewMealCalculator(reader),
		Auth:               NewAuthenticator(repos.APIKeys, repos.Users, verifier),
		Access:             NewAccessAdmin(repos.APIKeys, repos.Users),
		Policy:             NewAccessPolicy(cfg.AllowedEmailDomain),
	}
}
