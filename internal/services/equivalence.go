package services

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/graded-ledger/backend/internal/metrics"
	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

// equivalenceLevels is the number of nested key levels, L1 through L6
const equivalenceLevels = 6

// duplicateCacheSize bounds the per-cert duplicate result cache
const duplicateCacheSize = 512

// EquivalenceIndex buckets every card into six progressively more
// specific equivalence classes. Each level is keyed by that level's own
// cumulative key string, so L3 membership really means "same year,
// language, species, set and print details", not merely "some L3 bucket
// under the same L1 group".
//
// The index is a pure derivation of a card snapshot. It is rebuilt in
// full whenever the underlying dataset changes and never mutated
// incrementally.
type EquivalenceIndex struct {
	buckets [equivalenceLevels]map[string][]string // level -> key -> certs
	keys    map[string][equivalenceLevels]string   // cert -> its key chain
}

// BuildIndex constructs the index over a full card snapshot
func BuildIndex(cards []models.Card) *EquivalenceIndex {
	idx := &EquivalenceIndex{
		keys: make(map[string][equivalenceLevels]string, len(cards)),
	}
	for i := range idx.buckets {
		idx.buckets[i] = make(map[string][]string)
	}

	for i := range cards {
		card := &cards[i]
		chain := keyChain(card)
		idx.keys[card.Cert] = chain
		for level, key := range chain {
			idx.buckets[level][key] = append(idx.buckets[level][key], card.Cert)
		}
	}

	// deterministic member order inside every bucket
	for level := range idx.buckets {
		for _, members := range idx.buckets[level] {
			sort.Strings(members)
		}
	}
	return idx
}

// keyChain renders the six cumulative composite keys for a card.
// Unrenderable or absent components collapse to the sentinel instead of
// failing the build.
func keyChain(card *models.Card) [equivalenceLevels]string {
	var chain [equivalenceLevels]string

	// L1: year, language and the species (or non-Pokémon category)
	var b strings.Builder
	b.WriteString(card.Attr("year"))
	b.WriteString("-")
	b.WriteString(card.Attr("language"))
	if card.SpeciesRef != nil {
		b.WriteString("-")
		b.WriteString(card.Attr("species_ref"))
	} else if card.Category != nil {
		b.WriteString("-")
		b.WriteString(string(*card.Category))
	}
	chain[0] = b.String()

	// L2: + set
	chain[1] = chain[0] + "-" + card.Attr("set")

	// L3: + the print detail flags in fixed order
	b.Reset()
	b.WriteString(chain[1])
	for _, flag := range models.DetailFlagOrder {
		b.WriteString("-")
		b.WriteString(card.Attr(flag))
	}
	chain[2] = b.String()

	// L4: + signature presence
	chain[3] = chain[2] + "-" + strconv.FormatBool(card.Signed())

	// L5: + notes
	chain[4] = chain[3] + "-" + card.Attr("notes")

	// L6: + grade and signature grade
	chain[5] = chain[4] + "-" + card.Attr("grade") + "-" + card.Attr("sign")

	return chain
}

// Confidence scores how specifically cert was corroborated inside its
// group: 1/6 for being indexed at all, plus 1/6 for each level, walking
// coarsest to finest, at which the cert still shares a key with at
// least one other card. Credit stops at the first level where the key
// is unique; the keys are cumulative prefixes, so matching again at a
// finer level is impossible by construction.
func (idx *EquivalenceIndex) Confidence(cert string) float64 {
	chain, ok := idx.keys[cert]
	if !ok {
		return 0
	}
	score := 1.0 / equivalenceLevels
	for level := 0; level < equivalenceLevels-1; level++ {
		if len(idx.buckets[level][chain[level]]) < 2 {
			break
		}
		score += 1.0 / equivalenceLevels
	}
	return score
}

// FindDuplicates returns every L1 group containing cert, annotated with
// cert's confidence inside that group and the group's full L1
// membership. Groups are sorted by confidence, then member count, then
// key, so the order is deterministic.
func (idx *EquivalenceIndex) FindDuplicates(cert string) ([]models.DuplicateGroup, error) {
	chain, ok := idx.keys[cert]
	if !ok {
		return nil, fmt.Errorf("cert %s: %w", cert, store.ErrNotFound)
	}

	var groups []models.DuplicateGroup
	for key, members := range idx.buckets[0] {
		if key != chain[0] {
			continue
		}
		groups = append(groups, models.DuplicateGroup{
			Key:        key,
			Confidence: idx.Confidence(cert),
			Members:    append([]string(nil), members...),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Confidence != groups[j].Confidence {
			return groups[i].Confidence > groups[j].Confidence
		}
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}
		return groups[i].Key < groups[j].Key
	})
	return groups, nil
}

// EquivalenceService serves duplicate queries over the live store. The
// index is rebuilt lazily whenever the store revision moves; per-cert
// results are cached in an LRU that is dropped on rebuild.
type EquivalenceService struct {
	store *store.CardStore

	mu      sync.Mutex
	idx     *EquivalenceIndex
	cards   []models.Card
	byCert  map[string]*models.Card
	rev     uint64
	results *lru.Cache[string, []models.DuplicateGroup]
}

// NewEquivalenceService creates the query service
func NewEquivalenceService(s *store.CardStore) *EquivalenceService {
	results, err := lru.New[string, []models.DuplicateGroup](duplicateCacheSize)
	if err != nil {
		log.Printf("Failed to create duplicate result cache: %v", err)
	}
	return &EquivalenceService{store: s, results: results}
}

// ensureIndex rebuilds the index from a fresh snapshot if the dataset
// has changed since the last build.
func (s *EquivalenceService) ensureIndex() error {
	rev := s.store.Revision()
	if s.idx != nil && rev == s.rev {
		return nil
	}

	start := time.Now()
	cards, err := s.store.Snapshot()
	if err != nil {
		return err
	}
	s.cards = cards
	s.byCert = make(map[string]*models.Card, len(cards))
	for i := range cards {
		s.byCert[cards[i].Cert] = &cards[i]
	}
	s.idx = BuildIndex(cards)
	s.rev = rev
	if s.results != nil {
		s.results.Purge()
	}

	metrics.IndexBuildsTotal.Inc()
	metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	metrics.IndexCardsTotal.Set(float64(len(cards)))
	log.Printf("Equivalence index rebuilt: %d cards (rev %d) in %s", len(cards), rev, time.Since(start))
	return nil
}

// FindDuplicates answers a duplicate query for cert
func (s *EquivalenceService) FindDuplicates(cert string) ([]models.DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(); err != nil {
		return nil, err
	}
	if s.results != nil {
		if cached, ok := s.results.Get(cert); ok {
			metrics.DuplicateCacheHits.Inc()
			return cached, nil
		}
	}

	groups, err := s.idx.FindDuplicates(cert)
	if err != nil {
		return nil, err
	}
	if s.results != nil {
		s.results.Add(cert, groups)
		metrics.DuplicateCacheMisses.Inc()
	}
	return groups, nil
}

// FindSameAttr returns every cert whose rendered attribute equals the
// queried card's, together with the queried card's value. This is a
// plain equality scan, included for completeness.
func (s *EquivalenceService) FindSameAttr(cert, attr string) ([]string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(); err != nil {
		return nil, "", err
	}
	card, ok := s.byCert[cert]
	if !ok {
		return nil, "", fmt.Errorf("cert %s: %w", cert, store.ErrNotFound)
	}

	want := card.Attr(attr)
	var matches []string
	for i := range s.cards {
		if s.cards[i].Attr(attr) == want {
			matches = append(matches, s.cards[i].Cert)
		}
	}
	sort.Strings(matches)
	return matches, want, nil
}

// FindSameBackground returns certs of cards whose background species
// list contains the queried card's species.
func (s *EquivalenceService) FindSameBackground(cert string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(); err != nil {
		return nil, err
	}
	card, ok := s.byCert[cert]
	if !ok {
		return nil, fmt.Errorf("cert %s: %w", cert, store.ErrNotFound)
	}
	if card.SpeciesRef == nil {
		return nil, nil
	}

	var matches []string
	for i := range s.cards {
		for _, bg := range s.cards[i].ContainsSpecies {
			if bg == *card.SpeciesRef {
				matches = append(matches, s.cards[i].Cert)
				break
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// FindMostDuplicated returns the cert whose candidate groups carry the
// largest total membership, and that count. Ties break toward the
// lexically smaller cert.
func (s *EquivalenceService) FindMostDuplicated() (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(); err != nil {
		return "", 0, err
	}

	bestCert, bestCount := "", -1
	for i := range s.cards {
		cert := s.cards[i].Cert
		groups, err := s.idx.FindDuplicates(cert)
		if err != nil {
			return "", 0, err
		}
		count := 0
		for _, g := range groups {
			count += len(g.Members)
		}
		if count > bestCount || (count == bestCount && cert < bestCert) {
			bestCert, bestCount = cert, count
		}
	}
	if bestCount < 0 {
		return "", 0, fmt.Errorf("collection is empty: %w", store.ErrNotFound)
	}
	return bestCert, bestCount, nil
}
