package handler

import (
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/middleware"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/gin-gonic/gin"
)

type MealsHandler struct{ calc service.MealCalculator }

func NewMealsHandler(calc service.MealCalculator) *MealsHandler {
	return &MealsHandler{calc: calc}
}

// Calculate POST /api/meals/calculate
func (h *MealsHandler) Calculate(c *gin.Context) {
	var req dto.CalculateMealRequest
	if !bindAndValidate(c, &req) {
		return
	}
	sum, err := h.calc.Calculate(c.Request.Context(), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, sum)
}

// Me GET /api/me
func Me(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		respondError(c, apierror.Unauthorized("Authentication required"))
		return
	}
	respondOK(c, http.StatusOK, service.PrincipalResponse(p))
}
