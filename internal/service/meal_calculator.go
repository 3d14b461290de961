package service

import (
	"context"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MealCalculator totals the nutrition of a set of menu items.
type MealCalculator interface {
	Calculate(ctx context.Context, lines []dto.MealLine) (*dto.MealSummary, error)
}

type mealCalculator struct {
	reader ItemReader
}

func NewMealCalculator(reader ItemReader) MealCalculator {
	return &mealCalculator{reader: reader}
}

// Calculate sums every nutrition field scaled by quantity, rounded to one
// decimal. Allergens are the union over all lines; vegan and vegetarian
// hold only if every line has them.
func (m *mealCalculator) Calculate(ctx context.Context, lines []dto.MealLine) (*dto.MealSummary, error) {
	if len(lines) == 0 {
		return nil, apierror.Validation("items must not be empty")
	}

	sums := make([]decimal.Decimal, len(model.NutritionKeys))
	for i := range sums {
		sums[i] = decimal.Zero
	}
	var union model.AllergenFlags
	vegan, vegetarian := true, true
	counted := 0

	summary := &dto.MealSummary{Lines: make([]dto.MealLineResult, 0, len(lines))}
	for i, line := range lines {
		id, err := uuid.Parse(line.ItemID)
		if err != nil {
			return nil, apierror.Validationf("items[%d]: itemId is not a valid id", i)
		}
		if line.Quantity < 0 {
			return nil, apierror.Validationf("items[%d]: quantity must not be negative", i)
		}
		item, err := m.reader.GetItem(ctx, id)
		if err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return nil, apierror.Validationf("items[%d]: unknown item %s", i, line.ItemID)
			}
			return nil, err
		}
		if !item.IsActive {
			return nil, apierror.Validationf("items[%d]: %s is not available", i, item.Name)
		}

		qty := decimal.NewFromFloat(line.Quantity)
		for k, v := range item.Nutrition.Values() {
			sums[k] = sums[k].Add(decimal.NewFromFloat(v).Mul(qty))
		}
		if line.Quantity > 0 {
			counted++
			flags := item.Allergens.Values()
			for k, key := range model.AllergenKeys {
				if flags[k] {
					union.Set(key, true)
				}
			}
			vegan = vegan && item.Allergens.Vegan
			vegetarian = vegetarian && item.Allergens.Vegetarian
		}
		summary.Lines = append(summary.Lines, dto.MealLineResult{ItemID: item.ID, Name: item.Name, Quantity: line.Quantity})
	}

	for k, key := range model.NutritionKeys {
		f, _ := sums[k].Round(1).Float64()
		summary.Totals.Set(key, f)
	}
	union.Vegan = counted > 0 && vegan
	union.Vegetarian = counted > 0 && vegetarian
	summary.Allergens = union
	return summary, nil
}
