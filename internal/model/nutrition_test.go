package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractNutrition_NestedCurrentShape(t *testing.T) {
	full := NutritionData{Calories: 300, TotalFat: 12.5, Protein: 18}.ToMap()

	got := ExtractNutrition(full, nil)

	assert.Equal(t, 300.0, got.Calories)
	assert.Equal(t, 12.5, got.TotalFat)
	assert.Equal(t, 18.0, got.Protein)
}

func TestExtractNutrition_PartialNestedFilledFromTemplate(t *testing.T) {
	got := ExtractNutrition(map[string]interface{}{"calories": 300}, map[string]interface{}{"protein": 99})

	assert.Equal(t, 300.0, got.Calories)
	// nested wins outright: flat fields are not consulted
	assert.Zero(t, got.Protein)
	assert.Len(t, got.ToMap(), len(NutritionKeys))
}

func TestExtractNutrition_FlatFields(t *testing.T) {
	flat := map[string]interface{}{
		"name":     "Taco",
		"calories": "250",
		"sodium":   float64(640),
		"Protein":  int64(11),
	}

	got := ExtractNutrition(nil, flat)

	assert.Equal(t, 250.0, got.Calories)
	assert.Equal(t, 640.0, got.Sodium)
	assert.Equal(t, 11.0, got.Protein)
	assert.Zero(t, got.TotalFat)
}

func TestExtractNutrition_GarbageNeverFails(t *testing.T) {
	got := ExtractNutrition(map[string]interface{}{"calories": "n/a", "bogus": 4, "sodium": nil}, nil)

	assert.Equal(t, NutritionData{}, got)
}

func TestExtractNutrition_NonFiniteCountsAsZero(t *testing.T) {
	got := ExtractNutrition(map[string]interface{}{
		"calories":     "NaN",
		"sodium":       "Infinity",
		"protein":      "-Inf",
		"totalFat":     math.Inf(1),
		"totalSugars":  math.NaN(),
		"dietaryFiber": "2",
	}, nil)

	assert.Equal(t, NutritionData{DietaryFiber: 2}, got)
	merged := MergeNutrition(NutritionData{Calories: 100}, map[string]interface{}{"calories": "inf"})
	assert.Zero(t, merged.Calories)
}

func TestExtractNutrition_AnySubsetYieldsFullKeySet(t *testing.T) {
	source := NutritionData{Calories: 1, TotalFat: 2, Cholesterol: 3, Protein: 4}.ToMap()
	// every prefix of the key list, each missing the remaining keys
	for i := range NutritionKeys {
		subset := map[string]interface{}{}
		for _, k := range NutritionKeys[:i] {
			subset[k] = source[k]
		}
		got := ExtractNutrition(subset, nil).ToMap()
		assert.Len(t, got, len(NutritionKeys))
		for _, k := range NutritionKeys[i:] {
			assert.Equal(t, 0.0, got[k], k)
		}
	}
}

func TestExtractAllergens_Shapes(t *testing.T) {
	nested := ExtractAllergens(map[string]interface{}{"milk": true, "gluten": "yes"}, nil)
	assert.True(t, nested.Milk)
	assert.True(t, nested.Gluten)
	assert.False(t, nested.Egg)

	flat := ExtractAllergens(map[string]interface{}{}, map[string]interface{}{"vegan": "true", "soy": 1, "fish": "no"})
	assert.True(t, flat.Vegan)
	assert.True(t, flat.Soy)
	assert.False(t, flat.Fish)

	assert.Len(t, AllergenFlags{}.ToMap(), 12)
}

func TestMergeNutrition_OnlyPresentKeys(t *testing.T) {
	base := NutritionData{Calories: 300, Sodium: 500}

	got := MergeNutrition(base, map[string]interface{}{"sodium": 450})

	assert.Equal(t, 300.0, got.Calories)
	assert.Equal(t, 450.0, got.Sodium)
}
