package handler

import (
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/gin-gonic/gin"
)

// CategoriesHandler serves both /categories and /allergen-categories; the
// service decides which table and dependents apply.
type CategoriesHandler struct {
	svc      service.CategoryService
	cache    infra.ResponseCache
	resource string
}

func NewCategoriesHandler(svc service.CategoryService, cache infra.ResponseCache, resource string) *CategoriesHandler {
	return &CategoriesHandler{svc: svc, cache: cache, resource: resource}
}

// List GET /api/categories
func (h *CategoriesHandler) List(c *gin.Context) {
	serveCached(c, h.cache, func() (interface{}, int, error) {
		list, err := h.svc.List(c.Request.Context())
		return list, len(list), err
	})
}

// Get GET /api/categories/:id
func (h *CategoriesHandler) Get(c *gin.Context) {
	id, ok := pathID(c, h.resource)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, resp)
}

// Create POST /api/categories
func (h *CategoriesHandler) Create(c *gin.Context) {
	var req dto.CreateCategoryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, resp)
}

// Update PUT /api/categories/:id
func (h *CategoriesHandler) Update(c *gin.Context) {
	id, ok := pathID(c, h.resource)
	if !ok {
		return
	}
	var req dto.UpdateCategoryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, resp)
}

// Delete DELETE /api/categories/:id
func (h *CategoriesHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, h.resource)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, h.resource+" deleted", nil)
}
