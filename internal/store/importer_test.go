package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
)

// testDefaults mirrors the on-disk defaults schema: every allowed
// attribute with its absent value.
func testDefaults() map[string]any {
	defaults := map[string]any{
		"language":      nil,
		"pkmn":          nil,
		"energy":        nil,
		"trainer":       nil,
		"set":           nil,
		"sign":          nil,
		"notes":         nil,
		"grade":         nil,
		"contains_pkmn": nil,
		"selling":       map[string]any{"price": nil, "sold": nil},
		"sales_data":    map[string]any{},
	}
	for _, flag := range models.DetailFlagOrder {
		defaults[flag] = nil
	}
	return defaults
}

func testImporter() *Importer {
	return &Importer{defaults: testDefaults()}
}

func TestMergeMaps(t *testing.T) {
	base := map[string]any{
		"grade":   nil,
		"selling": map[string]any{"price": nil, "sold": nil},
	}
	update := map[string]any{
		"grade":   9.0,
		"selling": map[string]any{"price": 5000.0},
	}

	merged := mergeMaps(base, update)

	if merged["grade"] != 9.0 {
		t.Errorf("grade = %v, want 9", merged["grade"])
	}
	selling, ok := merged["selling"].(map[string]any)
	if !ok {
		t.Fatalf("selling merged to %T, want a map", merged["selling"])
	}
	if selling["price"] != 5000.0 {
		t.Errorf("selling.price = %v, want 5000", selling["price"])
	}
	if _, ok := selling["sold"]; !ok {
		t.Error("nested merge dropped the untouched sold key")
	}

	// inputs stay untouched
	if base["grade"] != nil {
		t.Error("mergeMaps mutated the base map")
	}
	if baseSelling := base["selling"].(map[string]any); baseSelling["price"] != nil {
		t.Error("mergeMaps mutated a nested base map")
	}
}

func TestParseBuildsCard(t *testing.T) {
	coll := RawCollection{
		"1996": {
			"27574940": {
				"language":      "japanese",
				"pkmn":          6.0,
				"set":           "base",
				"1st":           true,
				"grade":         9.0,
				"sign":          8.0,
				"notes":         "holo",
				"contains_pkmn": []any{25.0},
				"selling":       map[string]any{"price": 40000.0},
				"sales_data": map[string]any{
					"ebay": map[string]any{
						"sold": []any{
							map[string]any{"price": 38000.0, "grade": 9.0},
						},
					},
					"avg_price":    38000.0,
					"last_updated": "2024-11-02",
				},
			},
		},
	}

	cards, err := testImporter().Parse(coll)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("parsed %d cards, want 1", len(cards))
	}

	card := cards[0]
	if card.Cert != "27574940" || card.Year != 1996 || card.Grade != 9 {
		t.Errorf("card identity = %+v", card)
	}
	if card.SpeciesRef == nil || *card.SpeciesRef != 6 {
		t.Errorf("SpeciesRef = %v, want 6", card.SpeciesRef)
	}
	if card.Set == nil || *card.Set != models.SetBase {
		t.Errorf("Set = %v, want base", card.Set)
	}
	if card.Details["1st"] != true {
		t.Errorf("Details = %v, want 1st flag", card.Details)
	}
	if card.Sign == nil || *card.Sign != "8" {
		t.Errorf("Sign = %v, want 8", card.Sign)
	}
	if len(card.ContainsSpecies) != 1 || card.ContainsSpecies[0] != 25 {
		t.Errorf("ContainsSpecies = %v, want [25]", card.ContainsSpecies)
	}
	if card.Selling.Price != 40000 {
		t.Errorf("Selling.Price = %d, want 40000", card.Selling.Price)
	}
	if len(card.Sales.Observations) != 1 {
		t.Fatalf("Observations = %+v, want one entry", card.Sales.Observations)
	}
	obs := card.Sales.Observations[0]
	if obs.Price != 38000 || obs.Grade != 9 || obs.Venue != models.VenueEbay || obs.Status != models.StatusSold {
		t.Errorf("observation = %+v", obs)
	}
	if card.Sales.AvgPrice != 38000 {
		t.Errorf("AvgPrice = %d, want 38000", card.Sales.AvgPrice)
	}
	if card.Sales.UpdatedAt == nil || card.Sales.UpdatedAt.Format("2006-01-02") != "2024-11-02" {
		t.Errorf("UpdatedAt = %v, want 2024-11-02", card.Sales.UpdatedAt)
	}
}

func TestParseRejectsCrossYearDuplicateCert(t *testing.T) {
	coll := RawCollection{
		"1996": {"111": {"grade": 9.0}},
		"1999": {"111": {"grade": 8.0}},
	}

	_, err := testImporter().Parse(coll)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Cert != "111" {
		t.Errorf("error = %v, want ValidationError naming the duplicated cert", err)
	}
}

func TestParseRejectsNonYearPartition(t *testing.T) {
	coll := RawCollection{"nineteen96": {"111": {"grade": 9.0}}}
	if _, err := testImporter().Parse(coll); err == nil {
		t.Error("Parse accepted a non-numeric year partition")
	}
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		card    map[string]any
		wantErr string // offending field, empty for valid
	}{
		{"valid", map[string]any{"grade": 9.0}, ""},
		{"year allowed", map[string]any{"grade": 9.0, "year": 1996.0}, ""},
		{"unknown key", map[string]any{"grade": 9.0, "holofoil": true}, "holofoil"},
		{"missing grade", map[string]any{"language": "japanese"}, "grade"},
		{"bad set", map[string]any{"grade": 9.0, "set": "holo_rares_deluxe"}, "set"},
	}

	im := testImporter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := im.validate("1", tt.card)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate error = %v, want none", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantErr {
				t.Errorf("error = %v, want ValidationError on %s", err, tt.wantErr)
			}
		})
	}
}

func TestBuildCardRejectsConflictingKinds(t *testing.T) {
	_, err := buildCard("1", 1996, map[string]any{"pkmn": 6.0, "energy": true, "grade": 9.0})
	if err == nil {
		t.Error("buildCard accepted both a species reference and a category")
	}
}

func TestBuildCardRejectsGradeRange(t *testing.T) {
	for _, grade := range []float64{0, 11} {
		if _, err := buildCard("1", 1996, map[string]any{"grade": grade}); err == nil {
			t.Errorf("buildCard accepted grade %v", grade)
		}
	}
}

func TestBuildCardSkipsFalseFlags(t *testing.T) {
	card, err := buildCard("1", 1996, map[string]any{"grade": 9.0, "1st": false, "promo": nil})
	if err != nil {
		t.Fatalf("buildCard error: %v", err)
	}
	if len(card.Details) != 0 {
		t.Errorf("Details = %v, want empty when flags are false or absent", card.Details)
	}
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()

	defaultsPath := filepath.Join(dir, "default.json")
	writeJSON(t, defaultsPath, testDefaults())

	collectionPath := filepath.Join(dir, "collection.json")
	writeJSON(t, collectionPath, RawCollection{
		"1996": {
			"111": {"grade": 9, "pkmn": 6, "set": "base"},
			"222": {"grade": 8, "energy": true},
		},
	})

	s := newTestStore(t)
	im, err := NewImporter(s, defaultsPath)
	if err != nil {
		t.Fatalf("NewImporter error: %v", err)
	}

	n, err := im.ImportFile(collectionPath)
	if err != nil {
		t.Fatalf("ImportFile error: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d cards, want 2", n)
	}
	if s.Revision() == 0 {
		t.Error("import did not bump the store revision")
	}

	card, err := s.Get("222")
	if err != nil {
		t.Fatalf("Get after import: %v", err)
	}
	if card.Category == nil || *card.Category != models.CategoryEnergy {
		t.Errorf("Category = %v, want energy", card.Category)
	}

	// re-import upserts rather than erroring on existing certs
	if _, err := im.ImportFile(collectionPath); err != nil {
		t.Errorf("re-import error: %v", err)
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
