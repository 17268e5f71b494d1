package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm/clause"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
)

// RawCollection is the year-partitioned on-disk layout:
// {"1996": {"27574940": {...card...}, ...}, ...}
type RawCollection map[string]map[string]map[string]any

// Importer loads a year-partitioned JSON record set, deep-merges each
// record over the defaults schema, validates it and writes the result
// into the store.
type Importer struct {
	store    *CardStore
	defaults map[string]any
}

// NewImporter reads the defaults schema from defaultsPath
func NewImporter(s *CardStore, defaultsPath string) (*Importer, error) {
	raw, err := os.ReadFile(defaultsPath)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	var defaults map[string]any
	if err := json.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	return &Importer{store: s, defaults: defaults}, nil
}

// ImportFile loads collectionPath and persists every card. Returns the
// number of cards written.
func (im *Importer) ImportFile(collectionPath string) (int, error) {
	raw, err := os.ReadFile(collectionPath)
	if err != nil {
		return 0, fmt.Errorf("read collection: %w", err)
	}
	var coll RawCollection
	if err := json.Unmarshal(raw, &coll); err != nil {
		return 0, fmt.Errorf("parse collection: %w", err)
	}

	cards, err := im.Parse(coll)
	if err != nil {
		return 0, err
	}

	if len(cards) == 0 {
		return 0, nil
	}
	err = im.store.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cards).Error
	if err != nil {
		return 0, fmt.Errorf("persist collection: %w", err)
	}
	im.store.revision.Add(1)
	return len(cards), nil
}

// Parse flattens the year partitions, applies defaults and validates.
// Cert uniqueness is enforced across the whole collection, not per year.
func (im *Importer) Parse(coll RawCollection) ([]models.Card, error) {
	seen := map[string]string{} // cert -> year it first appeared in

	// deterministic year order so duplicate errors are stable
	years := make([]string, 0, len(coll))
	for y := range coll {
		years = append(years, y)
	}
	sort.Strings(years)

	var cards []models.Card
	for _, yearStr := range years {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return nil, &ValidationError{Field: "year", Msg: fmt.Sprintf("partition %q is not a year", yearStr)}
		}
		certs := make([]string, 0, len(coll[yearStr]))
		for c := range coll[yearStr] {
			certs = append(certs, c)
		}
		sort.Strings(certs)

		for _, cert := range certs {
			if prev, dup := seen[cert]; dup {
				return nil, &ValidationError{Cert: cert, Msg: fmt.Sprintf("appears in both %s and %s", prev, yearStr)}
			}
			seen[cert] = yearStr

			merged := mergeMaps(im.defaults, coll[yearStr][cert])
			if err := im.validate(cert, merged); err != nil {
				return nil, err
			}
			card, err := buildCard(cert, year, merged)
			if err != nil {
				return nil, err
			}
			cards = append(cards, *card)
		}
	}
	return cards, nil
}

// validate enforces the schema: no attribute outside the defaults may
// appear, grade is required and the set enum is closed.
func (im *Importer) validate(cert string, card map[string]any) error {
	for key := range card {
		if key == "year" {
			continue
		}
		if _, ok := im.defaults[key]; !ok {
			return &ValidationError{Cert: cert, Field: key, Msg: "not in the allowed schema"}
		}
	}

	if _, ok := card["grade"]; !ok {
		return &ValidationError{Cert: cert, Field: "grade", Msg: "required entry missing"}
	}

	if set, ok := card["set"]; ok && set != nil {
		name, _ := set.(string)
		if !models.IsValidSet(models.CardSet(name)) {
			return &ValidationError{Cert: cert, Field: "set", Msg: fmt.Sprintf("%q is not a valid set", name)}
		}
	}
	return nil
}

// mergeMaps performs a deep, nested map update: update wins, nested
// maps merge recursively. Neither input is mutated.
func mergeMaps(base, update map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		if sub, ok := v.(map[string]any); ok {
			if baseSub, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(baseSub, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// buildCard converts a merged, validated record map into a Card
func buildCard(cert string, year int, m map[string]any) (*models.Card, error) {
	card := &models.Card{Cert: cert, Year: year}

	if v, ok := m["language"].(string); ok && v != "" {
		card.Language = &v
	}
	if v, ok := m["pkmn"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return nil, &ValidationError{Cert: cert, Field: "pkmn", Msg: err.Error()}
		}
		card.SpeciesRef = &n
	}
	// energy/trainer are mutually exclusive with a species reference
	for _, cat := range []models.Category{models.CategoryEnergy, models.CategoryTrainer} {
		if v, ok := m[string(cat)]; ok && truthy(v) {
			if card.SpeciesRef != nil || card.Category != nil {
				return nil, &ValidationError{Cert: cert, Field: string(cat), Msg: "conflicts with another species/category entry"}
			}
			c := cat
			card.Category = &c
		}
	}
	if v, ok := m["set"].(string); ok && v != "" {
		set := models.CardSet(v)
		card.Set = &set
	}

	details := models.DetailFlags{}
	for _, flag := range models.DetailFlagOrder {
		if v, ok := m[flag]; ok && v != nil && truthy(v) {
			details[flag] = v
		}
	}
	if len(details) > 0 {
		card.Details = details
	}

	if v, ok := m["sign"]; ok && v != nil {
		s := fmt.Sprint(v)
		card.Sign = &s
	}
	if v, ok := m["notes"].(string); ok && v != "" {
		card.Notes = &v
	}

	grade, err := asInt(m["grade"])
	if err != nil {
		return nil, &ValidationError{Cert: cert, Field: "grade", Msg: err.Error()}
	}
	if grade < 1 || grade > 10 {
		return nil, &ValidationError{Cert: cert, Field: "grade", Msg: fmt.Sprintf("must be 1-10, got %d", grade)}
	}
	card.Grade = grade

	if v, ok := m["contains_pkmn"].([]any); ok {
		for _, raw := range v {
			n, err := asInt(raw)
			if err != nil {
				return nil, &ValidationError{Cert: cert, Field: "contains_pkmn", Msg: err.Error()}
			}
			card.ContainsSpecies = append(card.ContainsSpecies, n)
		}
	}

	if sell, ok := m["selling"].(map[string]any); ok {
		if p, ok := sell["price"]; ok && p != nil {
			n, err := asInt(p)
			if err != nil {
				return nil, &ValidationError{Cert: cert, Field: "selling.price", Msg: err.Error()}
			}
			card.Selling.Price = n
		}
		if s, ok := sell["sold"].(string); ok && s != "" {
			card.Selling.Sold = &s
		}
	}

	if sales, ok := m["sales_data"].(map[string]any); ok {
		hist, err := parseSales(cert, sales)
		if err != nil {
			return nil, err
		}
		card.Sales = *hist
	}

	return card, nil
}

// parseSales reads the venue/status-nested observation lists retained
// from earlier valuation runs.
func parseSales(cert string, m map[string]any) (*models.SalesHistory, error) {
	hist := &models.SalesHistory{}
	for _, venue := range models.AllVenues() {
		byStatus, ok := m[string(venue)].(map[string]any)
		if !ok {
			continue
		}
		for _, status := range models.AllListingStatuses() {
			entries, ok := byStatus[string(status)].([]any)
			if !ok {
				continue
			}
			for _, raw := range entries {
				entry, ok := raw.(map[string]any)
				if !ok {
					return nil, &ValidationError{Cert: cert, Field: "sales_data", Msg: "malformed observation entry"}
				}
				price, err := asInt(entry["price"])
				if err != nil {
					return nil, &ValidationError{Cert: cert, Field: "sales_data.price", Msg: err.Error()}
				}
				grade, err := asInt(entry["grade"])
				if err != nil {
					return nil, &ValidationError{Cert: cert, Field: "sales_data.grade", Msg: err.Error()}
				}
				hist.Observations = append(hist.Observations, models.Observation{
					Price: price, Grade: grade, Venue: venue, Status: status,
				})
			}
		}
	}
	if v, ok := m["avg_price"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return nil, &ValidationError{Cert: cert, Field: "sales_data.avg_price", Msg: err.Error()}
		}
		hist.AvgPrice = n
	}
	if v, ok := m["last_updated"].(string); ok && v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, &ValidationError{Cert: cert, Field: "sales_data.last_updated", Msg: err.Error()}
		}
		hist.UpdatedAt = &t
	}
	return hist, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	default:
		return true
	}
}
