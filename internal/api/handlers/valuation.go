package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

type ValuationHandler struct {
	store  *store.CardStore
	engine *services.ValuationEngine
}

func NewValuationHandler(s *store.CardStore, engine *services.ValuationEngine) *ValuationHandler {
	return &ValuationHandler{store: s, engine: engine}
}

// AppraiseRequest carries the observation list for a valuation run.
// DryRun computes the breakdown without persisting anything.
type AppraiseRequest struct {
	Observations     []models.Observation `json:"observations" binding:"required"`
	OverwriteSelling bool                 `json:"overwrite_selling"`
	DryRun           bool                 `json:"dry_run"`
}

// Appraise runs a valuation for a card from supplied observations
func (h *ValuationHandler) Appraise(c *gin.Context) {
	cert := c.Param("cert")

	var req AppraiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.store.Get(cert)
	if err != nil {
		respondValuationError(c, err)
		return
	}

	appraisal, err := h.engine.Appraise(card, req.Observations)
	if err != nil {
		respondValuationError(c, err)
		return
	}

	if !req.DryRun {
		if err := h.engine.Save(card, appraisal, req.Observations, req.OverwriteSelling); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, appraisal)
}

// CopyFromRequest controls a copy-from-cert valuation
type CopyFromRequest struct {
	OverwriteSelling bool `json:"overwrite_selling"`
	DryRun           bool `json:"dry_run"`
}

// AppraiseFromCert reuses another card's observation history for this
// card, rescaled to this card's grade and signature.
func (h *ValuationHandler) AppraiseFromCert(c *gin.Context) {
	cert := c.Param("cert")
	sourceCert := c.Param("source")

	// body is optional for this endpoint
	var req CopyFromRequest
	_ = c.ShouldBindJSON(&req)

	card, err := h.store.Get(cert)
	if err != nil {
		respondValuationError(c, err)
		return
	}

	appraisal, obs, err := h.engine.AppraiseFromCert(card, sourceCert)
	if err != nil {
		respondValuationError(c, err)
		return
	}

	if !req.DryRun {
		if err := h.engine.Save(card, appraisal, obs, req.OverwriteSelling); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, appraisal)
}

// Recalculate re-derives every priced card from its stored history
func (h *ValuationHandler) Recalculate(c *gin.Context) {
	result, err := h.engine.RecalculateAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondValuationError maps engine error kinds onto HTTP statuses
func respondValuationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoObservations), errors.Is(err, services.ErrNoSalesData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
