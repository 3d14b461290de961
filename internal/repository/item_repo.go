package repository

import (
	"context"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemRepository reads both item schemas: legacy flat items and normalized
// base items with their category assignments. Writes go through Batch.
type ItemRepository interface {
	// Legacy schema
	CountLegacy(ctx context.Context) (int64, error)
	ListLegacy(ctx context.Context) ([]model.LegacyItem, error)
	FindLegacyByID(ctx context.Context, id uuid.UUID) (*model.LegacyItem, error)
	ListLegacyByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.LegacyItem, error)
	CountLegacyByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	CountLegacyGrouped(ctx context.Context) (map[uuid.UUID]int64, error)

	// Normalized schema
	CountBaseItems(ctx context.Context) (int64, error)
	ListBaseItems(ctx context.Context) ([]model.BaseItem, error)
	FindBaseItemByID(ctx context.Context, id uuid.UUID) (*model.BaseItem, error)
	ListAssignments(ctx context.Context) ([]model.ItemCategoryAssignment, error)
	ListAssignmentsByItem(ctx context.Context, itemID uuid.UUID) ([]model.ItemCategoryAssignment, error)
	ListAssignmentsByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.ItemCategoryAssignment, error)
	CountAssignmentsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	CountAssignmentsGrouped(ctx context.Context) (map[uuid.UUID]int64, error)
}

type itemRepository struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepository{db: db} }

func (r *itemRepository) CountLegacy(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.LegacyItem{}).Count(&n).Error
	return n, translate("count legacy items", err)
}

func (r *itemRepository) ListLegacy(ctx context.Context) ([]model.LegacyItem, error) {
	var list []model.LegacyItem
	err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, translate("list legacy items", err)
}

func (r *itemRepository) FindLegacyByID(ctx context.Context, id uuid.UUID) (*model.LegacyItem, error) {
	var it model.LegacyItem
	if err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate("find legacy item", err)
	}
	return &it, nil
}

func (r *itemRepository) ListLegacyByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.LegacyItem, error) {
	var list []model.LegacyItem
	err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("name asc").Find(&list).Error
	return list, translate("list legacy items by category", err)
}

func (r *itemRepository) CountLegacyByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.LegacyItem{}).Where("category_id = ?", categoryID).Count(&n).Error
	return n, translate("count legacy items by category", err)
}

func (r *itemRepository) CountLegacyGrouped(ctx context.Context) (map[uuid.UUID]int64, error) {
	return groupedCount(ctx, r.db, model.TableLegacyItems)
}

func (r *itemRepository) CountBaseItems(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.BaseItem{}).Count(&n).Error
	return n, translate("count base items", err)
}

func (r *itemRepository) ListBaseItems(ctx context.Context) ([]model.BaseItem, error) {
	var list []model.BaseItem
	err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, translate("list base items", err)
}

func (r *itemRepository) FindBaseItemByID(ctx context.Context, id uuid.UUID) (*model.BaseItem, error) {
	var it model.BaseItem
	if err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate("find base item", err)
	}
	return &it, nil
}

func (r *itemRepository) ListAssignments(ctx context.Context) ([]model.ItemCategoryAssignment, error) {
	var list []model.ItemCategoryAssignment
	err := r.db.WithContext(ctx).Order("created_at asc, id asc").Find(&list).Error
	return list, translate("list assignments", err)
}

func (r *itemRepository) ListAssignmentsByItem(ctx context.Context, itemID uuid.UUID) ([]model.ItemCategoryAssignment, error) {
	var list []model.ItemCategoryAssignment
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).Order("created_at asc, id asc").Find(&list).Error
	return list, translate("list assignments by item", err)
}

func (r *itemRepository) ListAssignmentsByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.ItemCategoryAssignment, error) {
	var list []model.ItemCategoryAssignment
	err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("created_at asc, id asc").Find(&list).Error
	return list, translate("list assignments by category", err)
}

func (r *itemRepository) CountAssignmentsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ItemCategoryAssignment{}).Where("category_id = ?", categoryID).Count(&n).Error
	return n, translate("count assignments by category", err)
}

func (r *itemRepository) CountAssignmentsGrouped(ctx context.Context) (map[uuid.UUID]int64, error) {
	return groupedCount(ctx, r.db, model.TableAssignments)
}

type categoryTally struct {
	CategoryID uuid.UUID
	N          int64
}

// groupedCount tallies rows per category_id in one query.
func groupedCount(ctx context.Context, db *gorm.DB, table string) (map[uuid.UUID]int64, error) {
	var rows []categoryTally
	err := db.WithContext(ctx).Table(table).
		Select("category_id, count(*) as n").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("count "+table+" by category", err)
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = r.N
	}
	return out, nil
}
