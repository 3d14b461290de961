package repository

import (
	"context"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository reads one category table (menu or allergen).
type CategoryRepository interface {
	Table() string
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)
	Count(ctx context.Context) (int64, error)
}

type categoryRepository struct {
	db    *gorm.DB
	table string
}

// NewCategoryRepository binds a repository to model.TableCategories or
// model.TableAllergenCategories.
func NewCategoryRepository(db *gorm.DB, table string) CategoryRepository {
	return &categoryRepository{db: db, table: table}
}

func (r *categoryRepository) Table() string { return r.table }

func (r *categoryRepository) List(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).Table(r.table).Order("display_order asc, name asc").Find(&list).Error
	return list, translate("list "+r.table, err)
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var c model.Category
	if err := r.db.WithContext(ctx).Table(r.table).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate("find "+r.table, err)
	}
	return &c, nil
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var c model.Category
	if err := r.db.WithContext(ctx).Table(r.table).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, translate("find "+r.table+" by slug", err)
	}
	return &c, nil
}

func (r *categoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(r.table).Count(&n).Error
	return n, translate("count "+r.table, err)
}
