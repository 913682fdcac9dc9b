package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	app "github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/erp/reconciler/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunIDHeader carries the ID of the run that produced the report
const RunIDHeader = "X-Run-ID"

// ReconciliationRunner executes one reconciliation run
type ReconciliationRunner interface {
	Run(ctx context.Context, req app.RunRequest) (*app.Report, error)
}

// ReconciliationHandler triggers reconciliation runs over HTTP
type ReconciliationHandler struct {
	BaseHandler
	runner   ReconciliationRunner
	defaults app.RunRequest
}

// NewReconciliationHandler creates a handler. defaults fills the fields a
// request body leaves out.
func NewReconciliationHandler(runner ReconciliationRunner, defaults app.RunRequest) *ReconciliationHandler {
	return &ReconciliationHandler{runner: runner, defaults: defaults}
}

// Routes returns the reconciliation route group
func (h *ReconciliationHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("/reconciliation").
		POST("/run", h.Run)
}

// Run godoc
// @ID           runReconciliation
// @Summary      Run commission reconciliation
// @Description  Links released installments to sales orders, resolves invoices from the ERP and propagates document links. Defaults to a dry run.
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.RunReconciliationRequest false "Run parameters"
// @Success      200 {object} dto.RunReconciliationResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /reconciliation/run [post]
func (h *ReconciliationHandler) Run(c *gin.Context) {
	var body dto.RunReconciliationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
				return
			}
			h.BadRequest(c, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
			return
		}
	}

	req := body.ToRunRequest(h.defaults)
	report, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		logger.GetGinLogger(c).Error("Reconciliation run failed", zap.Bool("dry_run", req.DryRun), zap.Error(err))
		h.HandleError(c, err)
		return
	}

	c.Header(RunIDHeader, report.RunID)
	c.JSON(http.StatusOK, dto.NewRunReconciliationResponse(report))
}
