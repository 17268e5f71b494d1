package models

import (
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestCardAttr(t *testing.T) {
	set := SetBase
	card := Card{
		Cert:       "12345",
		Year:       1996,
		Language:   strPtr("japanese"),
		SpeciesRef: intPtr(6),
		Set:        &set,
		Grade:      9,
		Details:    DetailFlags{"1st": true, "promo": "fan club"},
		Sign:       strPtr("8"),
		Notes:      strPtr("misprint"),
	}

	tests := []struct {
		attr     string
		expected string
	}{
		{"year", "1996"},
		{"language", "japanese"},
		{"species_ref", "6"},
		{"set", "base"},
		{"grade", "9"},
		{"sign", "8"},
		{"notes", "misprint"},
		{"1st", "true"},
		{"promo", "fan club"},
		{"shadowless", AbsentValue},
		{"category", AbsentValue},
		{"no_such_attr", AbsentValue},
	}

	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			if got := card.Attr(tt.attr); got != tt.expected {
				t.Errorf("Attr(%q) = %q, want %q", tt.attr, got, tt.expected)
			}
		})
	}
}

func TestCardAttrAbsentEverything(t *testing.T) {
	card := Card{Cert: "1", Year: 2000, Grade: 10}

	for _, attr := range []string{"language", "species_ref", "set", "sign", "notes", "1st", "FA"} {
		if got := card.Attr(attr); got != AbsentValue {
			t.Errorf("Attr(%q) on bare card = %q, want %q", attr, got, AbsentValue)
		}
	}
}

func TestCardSigned(t *testing.T) {
	card := Card{Cert: "1", Grade: 9}
	if card.Signed() {
		t.Error("Signed() = true for a card without a sign entry")
	}
	card.Sign = strPtr("10")
	if !card.Signed() {
		t.Error("Signed() = false for a card with a sign entry")
	}
}

func TestIsValidSet(t *testing.T) {
	for _, s := range AllCardSets() {
		if !IsValidSet(s) {
			t.Errorf("IsValidSet(%q) = false for enum member", s)
		}
	}
	if IsValidSet("holo_rares_deluxe") {
		t.Error("IsValidSet accepted a name outside the enum")
	}
}

func TestDetailFlagOrderStable(t *testing.T) {
	// Equivalence keys concatenate the flags in this exact order; the
	// first and last entries pin the order against accidental edits.
	if DetailFlagOrder[0] != "1st" {
		t.Errorf("DetailFlagOrder[0] = %q, want %q", DetailFlagOrder[0], "1st")
	}
	if DetailFlagOrder[len(DetailFlagOrder)-1] != "promo" {
		t.Errorf("last detail flag = %q, want %q", DetailFlagOrder[len(DetailFlagOrder)-1], "promo")
	}
}

func TestObservationValidate(t *testing.T) {
	tests := []struct {
		name    string
		obs     Observation
		wantErr bool
	}{
		{"valid listed", Observation{Price: 10000, Grade: 9, Venue: VenueEbay, Status: StatusListed}, false},
		{"valid sold", Observation{Price: 1, Grade: 1, Venue: VenueMercari, Status: StatusSold}, false},
		{"zero price", Observation{Price: 0, Grade: 9, Venue: VenueEbay, Status: StatusListed}, true},
		{"negative price", Observation{Price: -5, Grade: 9, Venue: VenueEbay, Status: StatusListed}, true},
		{"grade too low", Observation{Price: 100, Grade: 0, Venue: VenueEbay, Status: StatusListed}, true},
		{"grade too high", Observation{Price: 100, Grade: 11, Venue: VenueEbay, Status: StatusListed}, true},
		{"unknown venue", Observation{Price: 100, Grade: 9, Venue: "yahoo", Status: StatusListed}, true},
		{"unknown status", Observation{Price: 100, Grade: 9, Venue: VenueEbay, Status: "reserved"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.obs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
