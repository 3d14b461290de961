package model

import (
	"time"

	"github.com/google/uuid"
)

// Table names. Menu and allergen categories share one shape but live in
// separate tables with independent counts.
const (
	TableCategories         = "categories"
	TableAllergenCategories = "allergen_categories"
	TableLegacyItems        = "items"
	TableBaseItems          = "base_items"
	TableAssignments        = "item_category_assignments"
	TableAllergenItems      = "allergen_items"
)

// UncategorizedName is shown for normalized items with no assignment.
const UncategorizedName = "Uncategorized"

// Category groups menu items (or allergen items) for display.
// ItemCount is a write-path cache; only the count maintainer and the
// reconciler change it.
type Category struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null"`
	Slug         string    `gorm:"not null"`
	Description  *string
	DisplayOrder int  `gorm:"not null;index"`
	IsActive     bool `gorm:"not null"`
	ItemCount    int  `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName defaults to the menu category table; allergen categories are
// addressed with db.Table(TableAllergenCategories).
func (Category) TableName() string { return TableCategories }
