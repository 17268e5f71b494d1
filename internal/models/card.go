package models

import (
	"fmt"
	"time"
)

// CardSet identifies the expansion a card was printed in. The enum is
// closed: a card either names one of these or carries no set at all.
type CardSet string

const (
	SetBase        CardSet = "base"
	SetJungle      CardSet = "jungle"
	SetFossil      CardSet = "fossil"
	SetTeamRocket  CardSet = "team_rocket"
	SetGymHeroes   CardSet = "gym_heroes"
	SetGymLeaders  CardSet = "gym_leaders"
	SetNeoGenesis  CardSet = "neo_genesis"
	SetNeoDiscover CardSet = "neo_discovery"
	SetNeoRevelat  CardSet = "neo_revelation"
	SetNeoDestiny  CardSet = "neo_destiny"
	SetSouthernIs  CardSet = "southern_islands"
	SetVSSeries    CardSet = "vs"
	SetWebSeries   CardSet = "web"
	SetPromo       CardSet = "promo"
)

// AllCardSets returns every valid set name
func AllCardSets() []CardSet {
	return []CardSet{
		SetBase, SetJungle, SetFossil, SetTeamRocket,
		SetGymHeroes, SetGymLeaders,
		SetNeoGenesis, SetNeoDiscover, SetNeoRevelat, SetNeoDestiny,
		SetSouthernIs, SetVSSeries, SetWebSeries, SetPromo,
	}
}

// IsValidSet reports whether name is a member of the set enum
func IsValidSet(name CardSet) bool {
	for _, s := range AllCardSets() {
		if s == name {
			return true
		}
	}
	return false
}

// Category classifies non-Pokémon cards. A card has either a SpeciesRef
// or a Category, never both.
type Category string

const (
	CategoryEnergy  Category = "energy"
	CategoryTrainer Category = "trainer"
)

// DetailFlagOrder is the fixed rendering order of the print-detail
// attributes. Equivalence keys depend on this order being stable, so
// append only.
var DetailFlagOrder = []string{
	"1st",
	"base_no_rarity",
	"shadowless",
	"shining",
	"FA",
	"EX",
	"M",
	"LV.X",
	"LEGEND",
	"BREAK",
	"bandai",
	"topsun_nonumber",
	"promo",
}

// DetailFlags maps a detail attribute name to its value. Presence of a
// key means the card carries that attribute; the value may be a bare
// bool or a qualifier string ("promo": "fan club").
type DetailFlags map[string]any

// AbsentValue is the sentinel rendered for any attribute a card does
// not carry. It doubles as the "unrenderable" fallback during index
// construction.
const AbsentValue = "NONE"

// SellingInfo is the live listing state of a card.
type SellingInfo struct {
	Price int     `json:"price"`
	Sold  *string `json:"sold"` // date string when sold, nil while unsold
}

// SalesHistory retains the observation set behind the last accepted
// valuation, the computed average and when it was written.
type SalesHistory struct {
	Observations []Observation `json:"observations" gorm:"serializer:json"`
	AvgPrice     int           `json:"avg_price"`
	UpdatedAt    *time.Time    `json:"updated_at"`
}

// Card is one graded card, identified by its certification number.
// The cert is unique across the whole collection regardless of year.
type Card struct {
	Cert            string      `json:"cert" gorm:"primaryKey"`
	Year            int         `json:"year" gorm:"not null;index"`
	Language        *string     `json:"language,omitempty"`
	SpeciesRef      *int        `json:"species_ref,omitempty" gorm:"index"`
	Category        *Category   `json:"category,omitempty"`
	Set             *CardSet    `json:"set,omitempty" gorm:"index"`
	Details         DetailFlags `json:"details,omitempty" gorm:"serializer:json"`
	Sign            *string     `json:"sign,omitempty"` // signature grade; non-nil means signed
	Notes           *string     `json:"notes,omitempty"`
	Grade           int         `json:"grade" gorm:"not null"`
	ContainsSpecies []int       `json:"contains_species,omitempty" gorm:"serializer:json"`

	Selling SellingInfo  `json:"selling" gorm:"embedded;embeddedPrefix:selling_"`
	Sales   SalesHistory `json:"sales_history" gorm:"embedded;embeddedPrefix:sales_"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Signed reports whether the card carries a signature
func (c *Card) Signed() bool {
	return c.Sign != nil
}

// Attr renders a named card attribute for equivalence-key purposes.
// Anything absent or unrenderable collapses to the AbsentValue
// sentinel rather than failing the index build.
func (c *Card) Attr(name string) string {
	switch name {
	case "year":
		return fmt.Sprintf("%d", c.Year)
	case "language":
		return renderPtr(c.Language)
	case "species_ref":
		if c.SpeciesRef == nil {
			return AbsentValue
		}
		return fmt.Sprintf("%d", *c.SpeciesRef)
	case "category":
		return renderPtr((*string)(c.Category))
	case "set":
		return renderPtr((*string)(c.Set))
	case "sign":
		return renderPtr(c.Sign)
	case "notes":
		return renderPtr(c.Notes)
	case "grade":
		return fmt.Sprintf("%d", c.Grade)
	default:
		// detail flags
		if c.Details != nil {
			if v, ok := c.Details[name]; ok && v != nil {
				return fmt.Sprint(v)
			}
		}
		return AbsentValue
	}
}

func renderPtr[T ~string](p *T) string {
	if p == nil {
		return AbsentValue
	}
	return string(*p)
}

// DuplicateGroup is one candidate group of certs that may represent
// the same physical card, scored for the queried cert.
type DuplicateGroup struct {
	Key        string   `json:"key"`
	Confidence float64  `json:"confidence"`
	Members    []string `json:"members"`
}
