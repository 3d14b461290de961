package model

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// NutritionKeys lists the fixed nutrition fields in display order.
var NutritionKeys = []string{
	"calories",
	"caloriesFromFat",
	"totalFat",
	"saturatedFat",
	"transFat",
	"polyunsaturatedFat",
	"monounsaturatedFat",
	"cholesterol",
	"sodium",
	"potassium",
	"totalCarbs",
	"dietaryFiber",
	"totalSugars",
	"addedSugars",
	"protein",
}

// AllergenKeys lists the nine allergens, gluten and the two lifestyle flags.
var AllergenKeys = []string{
	"egg",
	"fish",
	"milk",
	"peanuts",
	"sesame",
	"shellfish",
	"soy",
	"treeNuts",
	"wheat",
	"gluten",
	"vegan",
	"vegetarian",
}

// NutritionData is the full nutrition panel; every field defaults to 0.
type NutritionData struct {
	Calories           float64 `json:"calories"`
	CaloriesFromFat    float64 `json:"caloriesFromFat"`
	TotalFat           float64 `json:"totalFat"`
	SaturatedFat       float64 `json:"saturatedFat"`
	TransFat           float64 `json:"transFat"`
	PolyunsaturatedFat float64 `json:"polyunsaturatedFat"`
	MonounsaturatedFat float64 `json:"monounsaturatedFat"`
	Cholesterol        float64 `json:"cholesterol"`
	Sodium             float64 `json:"sodium"`
	Potassium          float64 `json:"potassium"`
	TotalCarbs         float64 `json:"totalCarbs"`
	DietaryFiber       float64 `json:"dietaryFiber"`
	TotalSugars        float64 `json:"totalSugars"`
	AddedSugars        float64 `json:"addedSugars"`
	Protein            float64 `json:"protein"`
}

// fields returns pointers in NutritionKeys order.
func (n *NutritionData) fields() []*float64 {
	return []*float64{
		&n.Calories, &n.CaloriesFromFat, &n.TotalFat, &n.SaturatedFat, &n.TransFat,
		&n.PolyunsaturatedFat, &n.MonounsaturatedFat, &n.Cholesterol, &n.Sodium,
		&n.Potassium, &n.TotalCarbs, &n.DietaryFiber, &n.TotalSugars, &n.AddedSugars,
		&n.Protein,
	}
}

// Values returns the fields in NutritionKeys order.
func (n NutritionData) Values() []float64 {
	ptrs := n.fields()
	out := make([]float64, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Set assigns a field by key; unknown keys are ignored.
func (n *NutritionData) Set(key string, v float64) {
	if i := indexOf(NutritionKeys, key); i >= 0 {
		*n.fields()[i] = v
	}
}

// ToMap renders the full key set for storage.
func (n NutritionData) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(NutritionKeys))
	for i, v := range n.Values() {
		m[NutritionKeys[i]] = v
	}
	return m
}

// AllergenFlags marks which allergens an item contains plus lifestyle flags.
type AllergenFlags struct {
	Egg        bool `json:"egg"`
	Fish       bool `json:"fish"`
	Milk       bool `json:"milk"`
	Peanuts    bool `json:"peanuts"`
	Sesame     bool `json:"sesame"`
	Shellfish  bool `json:"shellfish"`
	Soy        bool `json:"soy"`
	TreeNuts   bool `json:"treeNuts"`
	Wheat      bool `json:"wheat"`
	Gluten     bool `json:"gluten"`
	Vegan      bool `json:"vegan"`
	Vegetarian bool `json:"vegetarian"`
}

func (a *AllergenFlags) fields() []*bool {
	return []*bool{
		&a.Egg, &a.Fish, &a.Milk, &a.Peanuts, &a.Sesame, &a.Shellfish,
		&a.Soy, &a.TreeNuts, &a.Wheat, &a.Gluten, &a.Vegan, &a.Vegetarian,
	}
}

// Values returns the flags in AllergenKeys order.
func (a AllergenFlags) Values() []bool {
	ptrs := a.fields()
	out := make([]bool, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Set assigns a flag by key; unknown keys are ignored.
func (a *AllergenFlags) Set(key string, v bool) {
	if i := indexOf(AllergenKeys, key); i >= 0 {
		*a.fields()[i] = v
	}
}

func (a AllergenFlags) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(AllergenKeys))
	for i, v := range a.Values() {
		m[AllergenKeys[i]] = v
	}
	return m
}

// ExtractNutrition builds a fully populated NutritionData from a stored
// document. A non-empty nested object wins and is merged over the zero
// template; otherwise the panel is rebuilt from flat top-level fields.
// It never fails: unreadable values count as 0.
func ExtractNutrition(nested, flat map[string]interface{}) NutritionData {
	var n NutritionData
	src := nested
	if len(src) == 0 {
		src = flat
	}
	return MergeNutrition(n, src)
}

// MergeNutrition applies only the recognised keys present in patch.
func MergeNutrition(base NutritionData, patch map[string]interface{}) NutritionData {
	for k, raw := range patch {
		key := canonicalKey(NutritionKeys, k)
		if key == "" {
			continue
		}
		base.Set(key, toNumber(raw))
	}
	return base
}

// ExtractAllergens mirrors ExtractNutrition for allergen flags.
func ExtractAllergens(nested, flat map[string]interface{}) AllergenFlags {
	var a AllergenFlags
	src := nested
	if len(src) == 0 {
		src = flat
	}
	return MergeAllergens(a, src)
}

// MergeAllergens applies only the recognised keys present in patch.
func MergeAllergens(base AllergenFlags, patch map[string]interface{}) AllergenFlags {
	for k, raw := range patch {
		key := canonicalKey(AllergenKeys, k)
		if key == "" {
			continue
		}
		base.Set(key, toFlag(raw))
	}
	return base
}

func toNumber(v interface{}) float64 {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toFlag(v interface{}) bool {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "x", "yes", "y":
			return true
		}
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false
	}
	return b
}

// canonicalKey matches k against keys case-insensitively.
func canonicalKey(keys []string, k string) string {
	for _, key := range keys {
		if strings.EqualFold(key, k) {
			return key
		}
	}
	return ""
}

func indexOf(keys []string, k string) int {
	for i, key := range keys {
		if key == k {
			return i
		}
	}
	return -1
}
