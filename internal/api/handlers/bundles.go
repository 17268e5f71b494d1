package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

type BundleHandler struct {
	bundles *services.BundleService
}

func NewBundleHandler(bundles *services.BundleService) *BundleHandler {
	return &BundleHandler{bundles: bundles}
}

// Quote prices a prospective bundle without persisting it
func (h *BundleHandler) Quote(c *gin.Context) {
	var req models.CreateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.bundles.Quote(req.Certs)
	if err != nil {
		respondBundleError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// Create logs a new bundle
func (h *BundleHandler) Create(c *gin.Context) {
	var req models.CreateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bundle, quote, err := h.bundles.Create(req.Certs)
	if err != nil {
		respondBundleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bundle": bundle, "quote": quote})
}

// Get returns one bundle by id
func (h *BundleHandler) Get(c *gin.Context) {
	id, err := parseBundleID(c)
	if err != nil {
		return
	}

	bundle, err := h.bundles.Get(id)
	if err != nil {
		respondBundleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// Delete removes a bundle
func (h *BundleHandler) Delete(c *gin.Context) {
	id, err := parseBundleID(c)
	if err != nil {
		return
	}

	if err := h.bundles.Delete(id); err != nil {
		respondBundleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Reprice recomputes a bundle's price from current member prices
func (h *BundleHandler) Reprice(c *gin.Context) {
	id, err := parseBundleID(c)
	if err != nil {
		return
	}

	bundle, quote, err := h.bundles.Reprice(id)
	if err != nil {
		respondBundleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle": bundle, "quote": quote})
}

// ByCert lists the bundles a cert is sold in
func (h *BundleHandler) ByCert(c *gin.Context) {
	cert := c.Param("cert")

	bundles, err := h.bundles.FindByCert(cert)
	if err != nil {
		respondBundleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cert": cert, "bundles": bundles})
}

func parseBundleID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bundle id must be a number"})
		return 0, err
	}
	return uint(id), nil
}

func respondBundleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrBundleExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
