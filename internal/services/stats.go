package services

import (
	"github.com/codyseavey/graded-ledger/backend/internal/metrics"
	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

// StatsService reduces the priced portion of the collection to summary
// numbers and publishes them as gauges.
type StatsService struct {
	store *store.CardStore
}

// NewStatsService creates the stats service
func NewStatsService(s *store.CardStore) *StatsService {
	return &StatsService{store: s}
}

// Compute summarizes the current collection
func (s *StatsService) Compute() (*models.CollectionStats, error) {
	cards, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(cards)

	metrics.CollectionCardsTotal.Set(float64(stats.TotalCards))
	metrics.CollectionForSale.Set(float64(stats.ForSaleCards))
	metrics.CollectionValueJPY.Set(float64(stats.EstimatedValue))
	return stats, nil
}

// ComputeStats is the pure reduction over a card snapshot. The
// estimated whole-collection value extrapolates the mean listed price
// over every card, priced or not.
func ComputeStats(cards []models.Card) *models.CollectionStats {
	stats := &models.CollectionStats{TotalCards: len(cards)}

	var prices []float64
	for i := range cards {
		if p := cards[i].Selling.Price; p != 0 {
			prices = append(prices, float64(p))
			if stats.MinPriceJPY == 0 || p < stats.MinPriceJPY {
				stats.MinPriceJPY = p
			}
			if p > stats.MaxPriceJPY {
				stats.MaxPriceJPY = p
			}
		}
	}
	stats.ForSaleCards = len(prices)
	if len(cards) > 0 {
		stats.ForSalePct = float64(stats.ForSaleCards) / float64(len(cards)) * 100
	}
	if len(prices) == 0 {
		return stats
	}

	mean, std := populationStats(prices)
	stats.AvgPriceJPY = int(mean)
	stats.StdPriceJPY = int(std)
	stats.EstimatedValue = stats.TotalCards * stats.AvgPriceJPY
	return stats
}
