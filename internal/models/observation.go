package models

import "fmt"

// Venue is the marketplace an observation was taken from
type Venue string

const (
	VenueEbay    Venue = "ebay"
	VenueMercari Venue = "mercari"
)

// AllVenues returns the venues in collection-prompt order
func AllVenues() []Venue {
	return []Venue{VenueEbay, VenueMercari}
}

// ListingStatus distinguishes asking prices from confirmed sales
type ListingStatus string

const (
	StatusListed ListingStatus = "selling"
	StatusSold   ListingStatus = "sold"
)

// AllListingStatuses returns the statuses in collection-prompt order
func AllListingStatuses() []ListingStatus {
	return []ListingStatus{StatusListed, StatusSold}
}

// Observation is one manually recorded market price point. Observations
// are append-only inputs to a valuation run and are retained verbatim in
// the card's sales history after a successful price update.
type Observation struct {
	Price  int           `json:"price"`
	Grade  int           `json:"grade"`
	Venue  Venue         `json:"venue"`
	Status ListingStatus `json:"status"`
}

// Validate checks the observation's ranges and enum members
func (o Observation) Validate() error {
	if o.Price <= 0 {
		return fmt.Errorf("price must be greater than 0, got %d", o.Price)
	}
	if o.Grade < 1 || o.Grade > 10 {
		return fmt.Errorf("grade must be between 1 and 10, got %d", o.Grade)
	}
	switch o.Venue {
	case VenueEbay, VenueMercari:
	default:
		return fmt.Errorf("unknown venue %q", o.Venue)
	}
	switch o.Status {
	case StatusListed, StatusSold:
	default:
		return fmt.Errorf("unknown listing status %q", o.Status)
	}
	return nil
}
