package dto

import "github.com/duregger/cafe-rio-nutrition/internal/model"

type MealLine struct {
	ItemID   string  `json:"itemId"   validate:"required"`
	Quantity float64 `json:"quantity" validate:"gte=0,lte=50"`
}

type CalculateMealRequest struct {
	Items []MealLine `json:"items" validate:"required,min=1,max=100,dive"`
}

type MealLineResult struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// MealSummary totals a meal. Allergens is the union of the items' allergens;
// vegan and vegetarian hold only when every line qualifies.
type MealSummary struct {
	Lines     []MealLineResult    `json:"lines"`
	Totals    model.NutritionData `json:"totals"`
	Allergens model.AllergenFlags `json:"allergens"`
}
