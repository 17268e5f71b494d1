package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/codyseavey/graded-ledger/backend/internal/metrics"
	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

const (
	// baseMultiplier scales every observation before grade decay
	baseMultiplier = 1.1

	// signedMultiplier applies when the reference card is signed
	signedMultiplier = 10.0

	// gradeDecay is the per-grade-step price decay factor
	gradeDecay = 0.7

	// sameGradeBoost rewards observations at exactly the card's grade
	sameGradeBoost = 1.2

	// stdEpsilon guards the z-score division and the change guard
	stdEpsilon = 1e-5

	// z-score clamp bounds for outlier dampening
	zClampMin = 1.0
	zClampMax = 1000.0
)

// Valuation error kinds. NoSalesData is recovered per-card during bulk
// recalculation; Cancelled always aborts the run with nothing written.
var (
	ErrNoObservations = errors.New("no observations were collected")
	ErrNoSalesData    = errors.New("card has no sales history")
	ErrCancelled      = errors.New("valuation cancelled by operator")
)

// baseWeights is the fixed venue/status reliability table. Confirmed
// sales count more than asking prices, and Mercari more than eBay.
var baseWeights = map[models.Venue]map[models.ListingStatus]float64{
	models.VenueEbay: {
		models.StatusListed: 1.0,
		models.StatusSold:   1.2,
	},
	models.VenueMercari: {
		models.StatusListed: 1.25,
		models.StatusSold:   1.5,
	},
}

// BaseWeight returns the venue/status reliability weighting
func BaseWeight(venue models.Venue, status models.ListingStatus) float64 {
	if byStatus, ok := baseWeights[venue]; ok {
		if w, ok := byStatus[status]; ok {
			return w
		}
	}
	return 1.0
}

// adjustGrade maps grade 10 to a pseudo grade 11 so the decay step
// between 9 and 10 is symmetric with every other step.
func adjustGrade(grade int) int {
	if grade == 10 {
		return 11
	}
	return grade
}

// AppraisalLine is the audit record for a single observation
type AppraisalLine struct {
	Observation models.Observation `json:"observation"`
	Multiplier  float64            `json:"multiplier"`
	ScaledPrice float64            `json:"scaled_price"`
	BaseWeight  float64            `json:"base_weight"`
	StdWeight   float64            `json:"std_weight"`
	FinalWeight float64            `json:"final_weight"`
}

// Appraisal is the full result of one valuation run
type Appraisal struct {
	RunID        string          `json:"run_id"`
	Cert         string          `json:"cert"`
	Estimate     int             `json:"estimate_jpy"`
	PlainMean    int             `json:"plain_mean_jpy"`    // diagnostic: unweighted average
	WeightedMean int             `json:"weighted_mean_jpy"` // diagnostic: base weights only
	Lines        []AppraisalLine `json:"lines"`
	NoOp         bool            `json:"no_op"` // estimate matched the stored price, nothing persisted
}

// ValuationEngine converts heterogeneous price observations into a
// single defensible JPY price for a reference card.
type ValuationEngine struct {
	store *store.CardStore
}

// NewValuationEngine creates the engine over the card store
func NewValuationEngine(s *store.CardStore) *ValuationEngine {
	return &ValuationEngine{store: s}
}

// Multiplier converts an observation's price into the reference card's
// grade/signature terms.
func (e *ValuationEngine) Multiplier(card *models.Card, obsGrade int) float64 {
	m := baseMultiplier
	if card.Signed() {
		m *= signedMultiplier
	}
	exp := float64(adjustGrade(obsGrade) - adjustGrade(card.Grade))
	return m * math.Pow(gradeDecay, exp)
}

// Weight is the venue/status reliability weighting, boosted when the
// observation is at exactly the card's grade.
func (e *ValuationEngine) Weight(card *models.Card, obs models.Observation) float64 {
	w := BaseWeight(obs.Venue, obs.Status)
	if obs.Grade == card.Grade {
		w *= sameGradeBoost
	}
	return w
}

// Appraise computes the price estimate for card from obs. The estimate
// is the weight-normalized average of the scaled prices, with weights
// dampened by clamped z-score distance from the scaled-price mean, then
// truncated to an integer JPY value.
func (e *ValuationEngine) Appraise(card *models.Card, obs []models.Observation) (*Appraisal, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("cert %s: %w", card.Cert, ErrNoObservations)
	}
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("cert %s: %v", card.Cert, err)
		}
	}

	lines := make([]AppraisalLine, len(obs))
	scaled := make([]float64, len(obs))
	for i, o := range obs {
		mult := e.Multiplier(card, o.Grade)
		scaled[i] = float64(o.Price) * mult
		lines[i] = AppraisalLine{
			Observation: o,
			Multiplier:  mult,
			ScaledPrice: scaled[i],
			BaseWeight:  e.Weight(card, o),
		}
	}

	mean, std := populationStats(scaled)

	var sumWeighted, sumWeights float64
	var sumBaseWeighted, sumBaseWeights float64
	for i := range lines {
		stdWeight := 1.0
		if std >= stdEpsilon {
			z := math.Abs(scaled[i]-mean) / std
			z = clamp(z, zClampMin, zClampMax)
			stdWeight = 1.0 / z
		}
		lines[i].StdWeight = stdWeight
		lines[i].FinalWeight = lines[i].BaseWeight * stdWeight

		sumWeighted += scaled[i] * lines[i].FinalWeight
		sumWeights += lines[i].FinalWeight
		sumBaseWeighted += scaled[i] * lines[i].BaseWeight
		sumBaseWeights += lines[i].BaseWeight
	}

	return &Appraisal{
		RunID:        uuid.NewString(),
		Cert:         card.Cert,
		Estimate:     int(math.Floor(sumWeighted / sumWeights)),
		PlainMean:    int(math.Floor(mean)),
		WeightedMean: int(math.Floor(sumBaseWeighted / sumBaseWeights)),
		Lines:        lines,
	}, nil
}

// Save persists an accepted appraisal: the verbatim observation set,
// the computed average and the update date go into the card's sales
// history; the live selling price is overwritten only when asked.
//
// Change guard: when the estimate matches the previously stored
// average, the run is marked a no-op and nothing is written, so
// re-running valuation on unchanged data never rewrites storage or
// bumps the last-updated date.
func (e *ValuationEngine) Save(card *models.Card, appraisal *Appraisal, obs []models.Observation, overwriteSelling bool) error {
	if card.Sales.AvgPrice != 0 &&
		math.Abs(float64(appraisal.Estimate-card.Sales.AvgPrice)) <= stdEpsilon &&
		(!overwriteSelling || card.Selling.Price == appraisal.Estimate) {
		appraisal.NoOp = true
		metrics.ValuationNoOpsTotal.Inc()
		return nil
	}

	now := time.Now()
	card.Sales.Observations = append([]models.Observation(nil), obs...)
	card.Sales.AvgPrice = appraisal.Estimate
	card.Sales.UpdatedAt = &now
	if overwriteSelling {
		card.Selling.Price = appraisal.Estimate
	}

	if err := e.store.Update(card.Cert, card); err != nil {
		return err
	}
	metrics.ValuationRunsTotal.Inc()
	return nil
}

// AppraiseFresh collects observations from source, one venue/status
// pass at a time, and appraises them. A cancel from the source aborts
// the run with nothing persisted; an empty collection is
// ErrNoObservations.
func (e *ValuationEngine) AppraiseFresh(card *models.Card, source ObservationSource) (*Appraisal, []models.Observation, error) {
	obs, err := CollectObservations(card, source)
	if err != nil {
		return nil, nil, err
	}
	appraisal, err := e.Appraise(card, obs)
	if err != nil {
		return nil, nil, err
	}
	return appraisal, obs, nil
}

// AppraiseFromCert reuses sourceCert's stored observation history
// verbatim, recomputing every scale factor against the target card's
// own grade and signature. Useful for near-identical prints.
func (e *ValuationEngine) AppraiseFromCert(card *models.Card, sourceCert string) (*Appraisal, []models.Observation, error) {
	src, err := e.store.Get(sourceCert)
	if err != nil {
		return nil, nil, err
	}
	if len(src.Sales.Observations) == 0 {
		return nil, nil, fmt.Errorf("cert %s: %w", sourceCert, ErrNoSalesData)
	}
	obs := append([]models.Observation(nil), src.Sales.Observations...)
	appraisal, err := e.Appraise(card, obs)
	if err != nil {
		return nil, nil, err
	}
	return appraisal, obs, nil
}

// RecalculationResult summarizes one bulk recalculation run
type RecalculationResult struct {
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	NoOps     int      `json:"no_ops"`
	Certs     []string `json:"updated_certs,omitempty"`
}

// RecalculateAll re-derives the price of every card that already has a
// nonzero historical average from its own stored observations. Cards
// without sales history are skipped, never fatal to the batch.
func (e *ValuationEngine) RecalculateAll() (*RecalculationResult, error) {
	result := &RecalculationResult{}
	err := e.store.ForEach(func(cert string, card *models.Card) error {
		result.Processed++

		appraisal, err := e.recalculate(card)
		if err != nil {
			if errors.Is(err, ErrNoSalesData) {
				result.Skipped++
				log.Printf("Recalculation: skipping cert %s (no sales history)", cert)
				return nil
			}
			return fmt.Errorf("recalculate cert %s: %w", cert, err)
		}

		if appraisal.NoOp {
			result.NoOps++
		} else {
			result.Updated++
			result.Certs = append(result.Certs, cert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Bulk recalculation: %d processed, %d updated, %d unchanged, %d skipped",
		result.Processed, result.Updated, result.NoOps, result.Skipped)
	return result, nil
}

// recalculate re-appraises one card from its own stored history
func (e *ValuationEngine) recalculate(card *models.Card) (*Appraisal, error) {
	if card.Sales.AvgPrice == 0 || len(card.Sales.Observations) == 0 {
		return nil, ErrNoSalesData
	}
	appraisal, err := e.Appraise(card, card.Sales.Observations)
	if err != nil {
		return nil, err
	}
	if err := e.Save(card, appraisal, card.Sales.Observations, false); err != nil {
		return nil, err
	}
	return appraisal, nil
}

// populationStats returns the population mean and standard deviation
func populationStats(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
