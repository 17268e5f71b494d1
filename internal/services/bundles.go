package services

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gorm.io/gorm"

	"github.com/codyseavey/graded-ledger/backend/internal/metrics"
	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

const (
	// bundleDiscount is the fractional discount per additional card
	bundleDiscount = 0.01

	// bundleMaxDiscountStack caps how many cards the discount stacks over
	bundleMaxDiscountStack = 10

	// bundleExtraDiscount is a flat extra discount applied after stacking
	bundleExtraDiscount = 0.00

	// bundleRoundingUnit floors the final price to the nearest unit
	bundleRoundingUnit = 100
)

// ErrBundleExists is returned when the exact cert set is already bundled
var ErrBundleExists = errors.New("bundle already exists")

// BundleService prices and manages multi-card lots
type BundleService struct {
	store *store.CardStore
	db    *gorm.DB
}

// NewBundleService creates the bundle service
func NewBundleService(s *store.CardStore, db *gorm.DB) *BundleService {
	return &BundleService{store: s, db: db}
}

// Quote computes the discounted bundle price for certs without
// persisting anything. Every cert must resolve to a priced, unsold
// card.
func (s *BundleService) Quote(certs []string) (*models.BundleQuote, error) {
	if err := s.validateMembers(certs); err != nil {
		return nil, err
	}

	var original int
	for _, cert := range certs {
		card, err := s.store.Get(cert)
		if err != nil {
			return nil, err
		}
		original += card.Selling.Price
	}

	stack := len(certs) - 1
	if stack > bundleMaxDiscountStack {
		stack = bundleMaxDiscountStack
	}
	discount := math.Pow(1.0-bundleDiscount, float64(stack))
	discount *= 1.0 - bundleExtraDiscount

	discounted := float64(original) * discount
	if bundleRoundingUnit > 0 {
		discounted = math.Floor(discounted/bundleRoundingUnit) * bundleRoundingUnit
	}
	if discounted < 0 {
		return nil, fmt.Errorf("discounted bundle price is negative")
	}

	return &models.BundleQuote{
		Original:    original,
		Discounted:  int(discounted),
		DiscountPct: 100 - float64(discounted)/float64(original)*100,
	}, nil
}

// Create quotes and persists a new bundle for certs. The exact same
// cert set may only be bundled once.
func (s *BundleService) Create(certs []string) (*models.Bundle, *models.BundleQuote, error) {
	if existing, err := s.findByMembers(certs); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, fmt.Errorf("certs already bundled as #%d: %w", existing.ID, ErrBundleExists)
	}

	quote, err := s.Quote(certs)
	if err != nil {
		return nil, nil, err
	}

	bundle := &models.Bundle{Certs: certs, PriceJPY: quote.Discounted}
	if err := s.db.Create(bundle).Error; err != nil {
		return nil, nil, fmt.Errorf("persist bundle: %w", err)
	}
	s.publishCount()
	log.Printf("Bundle #%d created: %d cards at %d JPY (%.2f%% off)", bundle.ID, len(certs), quote.Discounted, quote.DiscountPct)
	return bundle, quote, nil
}

// Get returns one bundle by id
func (s *BundleService) Get(id uint) (*models.Bundle, error) {
	var bundle models.Bundle
	if err := s.db.First(&bundle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bundle #%d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return &bundle, nil
}

// FindByCert returns every bundle the cert is sold in
func (s *BundleService) FindByCert(cert string) ([]models.Bundle, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	var matches []models.Bundle
	for _, b := range all {
		for _, member := range b.Certs {
			if member == cert {
				matches = append(matches, b)
				break
			}
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("cert %s is not in any bundle: %w", cert, store.ErrNotFound)
	}
	return matches, nil
}

// Reprice recomputes a bundle's price from its members' current selling
// prices and persists it if it moved.
func (s *BundleService) Reprice(id uint) (*models.Bundle, *models.BundleQuote, error) {
	bundle, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	quote, err := s.Quote(bundle.Certs)
	if err != nil {
		return nil, nil, err
	}
	if quote.Discounted != bundle.PriceJPY {
		bundle.PriceJPY = quote.Discounted
		if err := s.db.Save(bundle).Error; err != nil {
			return nil, nil, fmt.Errorf("reprice bundle #%d: %w", id, err)
		}
		log.Printf("Bundle #%d repriced to %d JPY", id, quote.Discounted)
	}
	return bundle, quote, nil
}

// Delete removes a bundle
func (s *BundleService) Delete(id uint) error {
	result := s.db.Delete(&models.Bundle{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bundle #%d: %w", id, store.ErrNotFound)
	}
	s.publishCount()
	return nil
}

// validateMembers enforces the bundle membership rules: at least two
// distinct certs, each priced and unsold.
func (s *BundleService) validateMembers(certs []string) error {
	if len(certs) < 2 {
		return fmt.Errorf("a bundle must have at least two cards, got %d", len(certs))
	}
	seen := make(map[string]bool, len(certs))
	for _, cert := range certs {
		if seen[cert] {
			return fmt.Errorf("cert %s is repeated in the bundle", cert)
		}
		seen[cert] = true

		card, err := s.store.Get(cert)
		if err != nil {
			return err
		}
		if card.Selling.Sold != nil {
			return fmt.Errorf("cert %s has already been sold", cert)
		}
		if card.Selling.Price == 0 {
			return fmt.Errorf("cert %s has no price set yet", cert)
		}
	}
	return nil
}

// findByMembers returns the bundle with exactly this cert set, if any
func (s *BundleService) findByMembers(certs []string) (*models.Bundle, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(certs))
	for _, c := range certs {
		want[c] = true
	}
	for i, b := range all {
		if len(b.Certs) != len(want) {
			continue
		}
		same := true
		for _, member := range b.Certs {
			if !want[member] {
				same = false
				break
			}
		}
		if same {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (s *BundleService) all() ([]models.Bundle, error) {
	var bundles []models.Bundle
	if err := s.db.Find(&bundles).Error; err != nil {
		return nil, err
	}
	return bundles, nil
}

func (s *BundleService) publishCount() {
	var n int64
	if err := s.db.Model(&models.Bundle{}).Count(&n).Error; err == nil {
		metrics.BundlesTotal.Set(float64(n))
	}
}
