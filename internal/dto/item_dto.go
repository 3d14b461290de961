package dto

import (
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/model"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CreateItemRequest carries nutrition and allergens as loose maps: missing
// keys default through the empty templates.
type CreateItemRequest struct {
	Name        string                 `json:"name"        validate:"required,max=200"`
	CategoryID  string                 `json:"categoryId"  validate:"required"`
	Nutrition   map[string]interface{} `json:"nutrition"`
	Allergens   map[string]interface{} `json:"allergens"`
	ServingSize *string                `json:"servingSize"`
	IsActive    *bool                  `json:"isActive"`
}

// UpdateItemRequest is a partial update. Nutrition and allergen maps are
// merged key by key over the stored values.
type UpdateItemRequest struct {
	Name        *string                `json:"name"        validate:"omitempty,min=1,max=200"`
	CategoryID  *string                `json:"categoryId"`
	Nutrition   map[string]interface{} `json:"nutrition"`
	Allergens   map[string]interface{} `json:"allergens"`
	ServingSize *string                `json:"servingSize"`
	IsActive    *bool                  `json:"isActive"`
}

// ItemFilter holds the optional GET /items query filters.
type ItemFilter struct {
	CategoryID string `form:"categoryId"`
	IsActive   string `form:"isActive" validate:"omitempty,oneof=true false"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// MenuItem is the single item view served regardless of storage schema.
// CategoryID is empty for uncategorized items.
type MenuItem struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	CategoryID   string              `json:"categoryId"`
	CategoryName string              `json:"categoryName"`
	IsActive     bool                `json:"isActive"`
	Nutrition    model.NutritionData `json:"nutrition"`
	Allergens    model.AllergenFlags `json:"allergens"`
	ServingSize  *string             `json:"servingSize,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// BulkCreateResponse is returned by the bulk create endpoints.
type BulkCreateResponse struct {
	Created          int         `json:"created"`
	BatchesCommitted int         `json:"batchesCommitted"`
	Items            interface{} `json:"items"`
}
