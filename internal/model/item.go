package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LegacyItem is the denormalized item document: it embeds exactly one
// category reference. Nutrition and Allergens may be partial or missing on
// old rows; Attributes holds flat top-level fields from older exports.
type LegacyItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null;index"`
	CategoryID   uuid.UUID `gorm:"type:uuid;index"`
	CategoryName string
	Nutrition    datatypes.JSONMap
	Allergens    datatypes.JSONMap
	Attributes   datatypes.JSONMap
	ServingSize  *string
	IsActive     bool `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (LegacyItem) TableName() string { return TableLegacyItems }

// BaseItem holds item facts only; category membership lives in
// ItemCategoryAssignment rows.
type BaseItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null;index"`
	Nutrition   datatypes.JSONMap
	Allergens   datatypes.JSONMap
	Attributes  datatypes.JSONMap
	ServingSize *string
	IsActive    bool `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (BaseItem) TableName() string { return TableBaseItems }

// ItemCategoryAssignment links one base item to one category.
type ItemCategoryAssignment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ItemID     uuid.UUID `gorm:"type:uuid;not null;index"`
	CategoryID uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ItemCategoryAssignment) TableName() string { return TableAssignments }

// NewAssignment builds an assignment with a time-ordered id. Assignments
// written in one batch share CreatedAt, and readers break that tie on id, so
// the id must sort in creation order for the first assignment to stay first.
func NewAssignment(itemID, categoryID uuid.UUID, now time.Time) *ItemCategoryAssignment {
	return &ItemCategoryAssignment{
		ID:         uuid.Must(uuid.NewV7()),
		ItemID:     itemID,
		CategoryID: categoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AllergenItem is always stored denormalized.
type AllergenItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null;index"`
	CategoryID   uuid.UUID `gorm:"type:uuid;index"`
	CategoryName string
	Allergens    datatypes.JSONMap
	Attributes   datatypes.JSONMap
	IsActive     bool `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AllergenItem) TableName() string { return TableAllergenItems }
