package services

import (
	"errors"
	"math"
	"testing"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

const confTolerance = 1e-9

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func setPtr(s models.CardSet) *models.CardSet { return &s }

// charizard builds the reference test card; opts mutate it
func charizard(cert string, opts ...func(*models.Card)) models.Card {
	card := models.Card{
		Cert:       cert,
		Year:       1996,
		Language:   strPtr("japanese"),
		SpeciesRef: intPtr(6),
		Set:        setPtr(models.SetBase),
		Details:    models.DetailFlags{"1st": true},
		Notes:      strPtr("holo"),
		Grade:      9,
	}
	for _, opt := range opts {
		opt(&card)
	}
	return card
}

func TestConfidenceIdenticalCards(t *testing.T) {
	cards := []models.Card{charizard("111"), charizard("222")}
	idx := BuildIndex(cards)

	for _, cert := range []string{"111", "222"} {
		if got := idx.Confidence(cert); math.Abs(got-1.0) > confTolerance {
			t.Errorf("Confidence(%s) = %v, want 1.0 for identical cards", cert, got)
		}
	}
}

func TestConfidenceOneDetailFlagApart(t *testing.T) {
	cards := []models.Card{
		charizard("111"),
		charizard("222", func(c *models.Card) {
			c.Details = models.DetailFlags{"shadowless": true}
		}),
	}
	idx := BuildIndex(cards)

	// Shared through L2 only: 1/6 base plus L1 and L2 credit.
	want := 3.0 / 6.0
	for _, cert := range []string{"111", "222"} {
		if got := idx.Confidence(cert); math.Abs(got-want) > confTolerance {
			t.Errorf("Confidence(%s) = %v, want %v", cert, got, want)
		}
	}
}

func TestConfidenceGradeApart(t *testing.T) {
	// Divergence only at L6: credit runs through L5, which is full score.
	cards := []models.Card{
		charizard("111"),
		charizard("222", func(c *models.Card) { c.Grade = 7 }),
	}
	idx := BuildIndex(cards)

	if got := idx.Confidence("111"); math.Abs(got-1.0) > confTolerance {
		t.Errorf("Confidence = %v, want 1.0 when only the grade differs", got)
	}
}

func TestConfidenceLoneCard(t *testing.T) {
	cards := []models.Card{
		charizard("111"),
		charizard("999", func(c *models.Card) { c.SpeciesRef = intPtr(25) }),
	}
	idx := BuildIndex(cards)

	// Nothing shares 111's L1 key, so only the base credit remains.
	want := 1.0 / 6.0
	if got := idx.Confidence("111"); math.Abs(got-want) > confTolerance {
		t.Errorf("Confidence = %v, want %v for a card alone in its group", got, want)
	}
}

func TestNestedKeysDoNotCollapseMembership(t *testing.T) {
	// A and C are identical; B shares only year/language/species. If the
	// finer levels were keyed by the L1 string instead of their own
	// cumulative keys, B would score 1.0 here too.
	cards := []models.Card{
		charizard("AAA"),
		charizard("BBB", func(c *models.Card) {
			c.Set = nil
			c.Details = nil
			c.Notes = nil
		}),
		charizard("CCC"),
	}
	idx := BuildIndex(cards)

	if got := idx.Confidence("AAA"); math.Abs(got-1.0) > confTolerance {
		t.Errorf("Confidence(AAA) = %v, want 1.0", got)
	}
	want := 2.0 / 6.0
	if got := idx.Confidence("BBB"); math.Abs(got-want) > confTolerance {
		t.Errorf("Confidence(BBB) = %v, want %v (shares only the coarse key)", got, want)
	}
}

func TestFindDuplicatesMembership(t *testing.T) {
	cards := []models.Card{
		charizard("111"),
		charizard("222"),
		charizard("333", func(c *models.Card) { c.SpeciesRef = intPtr(25) }),
		charizard("444", func(c *models.Card) {
			cat := models.CategoryEnergy
			c.Category = &cat
			c.SpeciesRef = nil
		}),
	}
	idx := BuildIndex(cards)

	for _, card := range cards {
		groups, err := idx.FindDuplicates(card.Cert)
		if err != nil {
			t.Fatalf("FindDuplicates(%s) error: %v", card.Cert, err)
		}
		if len(groups) == 0 {
			t.Fatalf("FindDuplicates(%s) returned no groups", card.Cert)
		}
		for _, g := range groups {
			found := false
			for _, member := range g.Members {
				if member == card.Cert {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("FindDuplicates(%s) returned group %q not containing the cert", card.Cert, g.Key)
			}
		}
	}
}

func TestFindDuplicatesGroupContents(t *testing.T) {
	cards := []models.Card{charizard("111"), charizard("222"), charizard("333")}
	idx := BuildIndex(cards)

	groups, err := idx.FindDuplicates("222")
	if err != nil {
		t.Fatalf("FindDuplicates error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if len(g.Members) != 3 {
		t.Errorf("group has %d members, want 3", len(g.Members))
	}
	// member list is sorted for deterministic output
	for i := 1; i < len(g.Members); i++ {
		if g.Members[i-1] >= g.Members[i] {
			t.Errorf("members not sorted: %v", g.Members)
		}
	}
	if math.Abs(g.Confidence-1.0) > confTolerance {
		t.Errorf("group confidence = %v, want 1.0", g.Confidence)
	}
}

func TestFindDuplicatesUnknownCert(t *testing.T) {
	idx := BuildIndex([]models.Card{charizard("111")})

	_, err := idx.FindDuplicates("does-not-exist")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindDuplicates(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestKeyChainSentinels(t *testing.T) {
	bare := models.Card{Cert: "1", Year: 2001, Grade: 8}
	chain := keyChain(&bare)

	if chain[0] != "2001-"+models.AbsentValue {
		t.Errorf("L1 = %q, want year plus language sentinel", chain[0])
	}
	// every later level is a strict extension of its parent
	for level := 1; level < equivalenceLevels; level++ {
		parent := chain[level-1]
		if len(chain[level]) <= len(parent) || chain[level][:len(parent)] != parent {
			t.Errorf("L%d key %q is not an extension of L%d key %q", level+1, chain[level], level, parent)
		}
	}
}

func TestKeyChainCategoryCards(t *testing.T) {
	energy := models.Card{Cert: "1", Year: 1998, Grade: 8}
	cat := models.CategoryEnergy
	energy.Category = &cat

	chain := keyChain(&energy)
	want := "1998-" + models.AbsentValue + "-energy"
	if chain[0] != want {
		t.Errorf("L1 for energy card = %q, want %q", chain[0], want)
	}
}
