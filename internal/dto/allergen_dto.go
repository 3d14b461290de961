package dto

import (
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/model"
)

type CreateAllergenItemRequest struct {
	Name       string                 `json:"name"       validate:"required,max=200"`
	CategoryID string                 `json:"categoryId" validate:"required"`
	Allergens  map[string]interface{} `json:"allergens"`
	IsActive   *bool                  `json:"isActive"`
}

type UpdateAllergenItemRequest struct {
	Name       *string                `json:"name"       validate:"omitempty,min=1,max=200"`
	CategoryID *string                `json:"categoryId"`
	Allergens  map[string]interface{} `json:"allergens"`
	IsActive   *bool                  `json:"isActive"`
}

type AllergenItemResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	CategoryID   string              `json:"categoryId"`
	CategoryName string              `json:"categoryName"`
	Allergens    model.AllergenFlags `json:"allergens"`
	IsActive     bool                `json:"isActive"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}
