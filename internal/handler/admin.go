package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/service"
	"github.com/duregger/cafe-rio-nutrition/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// maxImportBytes caps an uploaded import file.
const maxImportBytes = 16 << 20

// AdminHandler serves the bulk import, migration and reconciliation
// endpoints.
type AdminHandler struct {
	importer   service.Importer
	migrator   service.Migrator
	dispatcher worker.Dispatcher
}

func NewAdminHandler(importer service.Importer, migrator service.Migrator, dispatcher worker.Dispatcher) *AdminHandler {
	return &AdminHandler{importer: importer, migrator: migrator, dispatcher: dispatcher}
}

// ImportNutrition POST /api/import/nutrition with the converter's JSON file
// as the raw body.
func (h *AdminHandler) ImportNutrition(c *gin.Context) {
	h.runImport(c, h.importer.ImportNutrition)
}

// ImportAllergens POST /api/import/allergens
func (h *AdminHandler) ImportAllergens(c *gin.Context) {
	h.runImport(c, h.importer.ImportAllergens)
}

func (h *AdminHandler) runImport(c *gin.Context, run func(ctx context.Context, raw []byte) (*dto.ImportResult, error)) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, apierror.Validation("import file is too large"))
			return
		}
		respondError(c, apierror.Validation("could not read import file"))
		return
	}
	res, err := run(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusCreated, "Import finished", res)
}

// Migrate POST /api/admin/migrate
func (h *AdminHandler) Migrate(c *gin.Context) {
	res, err := h.migrator.MigrateLegacy(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Legacy items migrated", res)
}

// Reconcile POST /api/admin/reconcile, body {"apply": bool} or ?apply=true.
// With a job queue configured the run is queued and answered with 202.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}
	if q, ok := c.GetQuery("apply"); ok {
		req.Apply = cast.ToBool(q)
	}
	report, err := h.dispatcher.EnqueueReconcile(c.Request.Context(), req.Apply)
	if err != nil {
		respondError(c, apierror.Upstream("enqueue reconcile", err))
		return
	}
	if report == nil {
		respondMessage(c, http.StatusAccepted, "Reconcile queued", nil)
		return
	}
	respondOK(c, http.StatusOK, report)
}
