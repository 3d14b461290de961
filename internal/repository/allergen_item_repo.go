package repository

import (
	"context"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AllergenItemRepository interface {
	List(ctx context.Context) ([]model.AllergenItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.AllergenItem, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.AllergenItem, error)
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	CountGrouped(ctx context.Context) (map[uuid.UUID]int64, error)
}

type allergenItemRepository struct{ db *gorm.DB }

func NewAllergenItemRepository(db *gorm.DB) AllergenItemRepository {
	return &allergenItemRepository{db: db}
}

func (r *allergenItemRepository) List(ctx context.Context) ([]model.AllergenItem, error) {
	var list []model.AllergenItem
	err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, translate("list allergen items", err)
}

func (r *allergenItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AllergenItem, error) {
	var it model.AllergenItem
	if err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate("find allergen item", err)
	}
	return &it, nil
}

func (r *allergenItemRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.AllergenItem, error) {
	var list []model.AllergenItem
	err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("name asc").Find(&list).Error
	return list, translate("list allergen items by category", err)
}

func (r *allergenItemRepository) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AllergenItem{}).Where("category_id = ?", categoryID).Count(&n).Error
	return n, translate("count allergen items by category", err)
}

func (r *allergenItemRepository) CountGrouped(ctx context.Context) (map[uuid.UUID]int64, error) {
	return groupedCount(ctx, r.db, model.TableAllergenItems)
}
