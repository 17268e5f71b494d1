package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
)

type CollectionHandler struct {
	stats    *services.StatsService
	snapshot *services.SnapshotService
}

func NewCollectionHandler(stats *services.StatsService, snapshot *services.SnapshotService) *CollectionHandler {
	return &CollectionHandler{stats: stats, snapshot: snapshot}
}

// GetStats summarizes the priced portion of the collection
func (h *CollectionHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Compute()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetValueHistory returns recorded value snapshots for a period
func (h *CollectionHandler) GetValueHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "month")

	snapshots, err := h.snapshot.GetHistory(period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ValueHistoryResponse{
		Snapshots: snapshots,
		Period:    period,
	})
}

// TakeSnapshot records a value snapshot on demand
func (h *CollectionHandler) TakeSnapshot(c *gin.Context) {
	if err := h.snapshot.ForceTakeSnapshot(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": h.snapshot.GetLastSnapshot()})
}
