package handler

import (
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/gin-gonic/gin"
)

type AllergenItemsHandler struct {
	svc   service.AllergenItemService
	cache infra.ResponseCache
}

func NewAllergenItemsHandler(svc service.AllergenItemService, cache infra.ResponseCache) *AllergenItemsHandler {
	return &AllergenItemsHandler{svc: svc, cache: cache}
}

func (h *AllergenItemsHandler) List(c *gin.Context) {
	var f dto.ItemFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid query parameters"))
		return
	}
	if !validateStruct(c, &f) {
		return
	}
	serveCached(c, h.cache, func() (interface{}, int, error) {
		list, err := h.svc.List(c.Request.Context(), f)
		return list, len(list), err
	})
}

func (h *AllergenItemsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Allergen item")
	if !ok {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, item)
}

func (h *AllergenItemsHandler) Create(c *gin.Context) {
	var req dto.CreateAllergenItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, item)
}

func (h *AllergenItemsHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Allergen item")
	if !ok {
		return
	}
	var req dto.UpdateAllergenItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, item)
}

func (h *AllergenItemsHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Allergen item")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Allergen item deleted", nil)
}

func (h *AllergenItemsHandler) BulkCreate(c *gin.Context) {
	var reqs []dto.CreateAllergenItemRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Body must be a JSON array of allergen items"))
		return
	}
	resp, err := h.svc.BulkCreate(c.Request.Context(), reqs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusCreated, "Allergen items created", resp)
}
