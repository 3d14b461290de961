package dto

import "time"

// ── Request DTOs ──────────────────────────────────────────────────────────────

type CreateCategoryRequest struct {
	Name         string  `json:"name"         validate:"required,max=120"`
	Slug         string  `json:"slug"         validate:"required,max=120"`
	Description  *string `json:"description"`
	DisplayOrder *int    `json:"displayOrder" validate:"omitempty,min=0"`
	IsActive     *bool   `json:"isActive"`
}

// UpdateCategoryRequest is a partial update: nil fields are left untouched.
// itemCount is deliberately absent.
type UpdateCategoryRequest struct {
	Name         *string `json:"name"         validate:"omitempty,min=1,max=120"`
	Slug         *string `json:"slug"         validate:"omitempty,min=1,max=120"`
	Description  *string `json:"description"`
	DisplayOrder *int    `json:"displayOrder" validate:"omitempty,min=0"`
	IsActive     *bool   `json:"isActive"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type CategoryResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	ItemCount    int       `json:"itemCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
