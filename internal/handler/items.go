package handler

import (
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/gin-gonic/gin"
)

type ItemsHandler struct {
	reader service.ItemReader
	svc    service.ItemService
	cache  infra.ResponseCache
}

func NewItemsHandler(reader service.ItemReader, svc service.ItemService, cache infra.ResponseCache) *ItemsHandler {
	return &ItemsHandler{reader: reader, svc: svc, cache: cache}
}

// List GET /api/items?categoryId=&isActive=
func (h *ItemsHandler) List(c *gin.Context) {
	var f dto.ItemFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid query parameters"))
		return
	}
	if !validateStruct(c, &f) {
		return
	}
	serveCached(c, h.cache, func() (interface{}, int, error) {
		list, err := h.reader.ListItems(c.Request.Context(), f)
		return list, len(list), err
	})
}

// Get GET /api/items/:id
func (h *ItemsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Item")
	if !ok {
		return
	}
	item, err := h.reader.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, item)
}

// Create POST /api/items
func (h *ItemsHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
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

// Update PUT /api/items/:id
func (h *ItemsHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Item")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
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

// Delete DELETE /api/items/:id
func (h *ItemsHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Item")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Item deleted", nil)
}

// BulkCreate POST /api/items/bulk with a JSON array of item payloads.
// Row validation happens in the service so the error names the row index.
func (h *ItemsHandler) BulkCreate(c *gin.Context) {
	var reqs []dto.CreateItemRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Body must be a JSON array of items"))
		return
	}
	resp, err := h.svc.BulkCreate(c.Request.Context(), reqs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusCreated, "Items created", resp)
}
