package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

type CardHandler struct {
	store       *store.CardStore
	equivalence *services.EquivalenceService
	dex         *services.DexService
}

func NewCardHandler(s *store.CardStore, equivalence *services.EquivalenceService, dex *services.DexService) *CardHandler {
	return &CardHandler{
		store:       s,
		equivalence: equivalence,
		dex:         dex,
	}
}

// CardDetail decorates a card with resolved species names
type CardDetail struct {
	models.Card
	SpeciesName          string   `json:"species_name,omitempty"`
	ContainsSpeciesNames []string `json:"contains_species_names,omitempty"`
}

func (h *CardHandler) decorate(card *models.Card) CardDetail {
	detail := CardDetail{Card: *card}
	if card.SpeciesRef != nil {
		detail.SpeciesName = h.dex.NameOf(*card.SpeciesRef)
	}
	detail.ContainsSpeciesNames = h.dex.NamesOf(card.ContainsSpecies)
	return detail
}

func (h *CardHandler) ListCards(c *gin.Context) {
	cards, err := h.store.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards, "count": len(cards)})
}

func (h *CardHandler) GetCard(c *gin.Context) {
	cert := c.Param("cert")

	card, err := h.store.Get(cert)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.decorate(card))
}

// FindDuplicates returns the ranked candidate-duplicate groups for a cert
func (h *CardHandler) FindDuplicates(c *gin.Context) {
	cert := c.Param("cert")

	groups, err := h.equivalence.FindDuplicates(cert)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cert": cert, "groups": groups})
}

// FindSameAttr returns every card sharing one attribute with the cert
func (h *CardHandler) FindSameAttr(c *gin.Context) {
	cert := c.Param("cert")
	attr := c.Query("attr")
	if attr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'attr' is required"})
		return
	}

	certs, value, err := h.equivalence.FindSameAttr(cert, attr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// resolve species numbers to names for readability
	if attr == "species_ref" && value != models.AbsentValue {
		if card, err := h.store.Get(cert); err == nil && card.SpeciesRef != nil {
			if name := h.dex.NameOf(*card.SpeciesRef); name != "" {
				value = name
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"cert": cert, "attr": attr, "value": value, "matches": certs})
}

// FindSameBackground returns cards featuring this card's species in the background
func (h *CardHandler) FindSameBackground(c *gin.Context) {
	cert := c.Param("cert")

	certs, err := h.equivalence.FindSameBackground(cert)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cert": cert, "matches": certs})
}

// MostDuplicated returns the cert with the largest candidate pool
func (h *CardHandler) MostDuplicated(c *gin.Context) {
	cert, count, err := h.equivalence.FindMostDuplicated()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	card, err := h.store.Get(cert)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cert": cert, "candidates": count, "card": h.decorate(card)})
}
