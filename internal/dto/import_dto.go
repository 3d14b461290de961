package dto

// ImportRow is one record of an import file. Either Category or
// CategoryName names the category; the payload is Nutrition or Allergens
// depending on the import kind.
type ImportRow struct {
	Name         string                 `json:"name"`
	Category     string                 `json:"category"`
	CategoryName string                 `json:"categoryName"`
	Nutrition    map[string]interface{} `json:"nutrition"`
	Allergens    map[string]interface{} `json:"allergens"`
}

// CategoryLabel returns whichever category key the row used.
func (r ImportRow) CategoryLabel() string {
	if r.Category != "" {
		return r.Category
	}
	return r.CategoryName
}

// ImportFile is the enveloped import format produced by the Excel converters.
type ImportFile struct {
	Categories []string               `json:"categories"`
	Items      []ImportRow            `json:"items"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type ImportResult struct {
	Rows               int `json:"rows"`
	CategoriesCreated  int `json:"categoriesCreated"`
	ItemsCreated       int `json:"itemsCreated"`
	AssignmentsCreated int `json:"assignmentsCreated"`
	DuplicatesMerged   int `json:"duplicatesMerged"`
	BatchesCommitted   int `json:"batchesCommitted"`
}

type MigrationResult struct {
	LegacyRead         int `json:"legacyRead"`
	BaseItemsCreated   int `json:"baseItemsCreated"`
	AssignmentsCreated int `json:"assignmentsCreated"`
	DuplicatesMerged   int `json:"duplicatesMerged"`
	BatchesCommitted   int `json:"batchesCommitted"`
}

// CountDrift is one category whose cached itemCount disagrees with a fresh tally.
type CountDrift struct {
	Table      string `json:"table"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Cached     int    `json:"cached"`
	Actual     int    `json:"actual"`
}

type ReconcileReport struct {
	Checked int          `json:"checked"`
	Drift   []CountDrift `json:"drift"`
	Applied bool         `json:"applied"`
}

type ReconcileRequest struct {
	Apply bool `json:"apply"`
}
