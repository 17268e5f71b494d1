package models

import (
	"time"
)

// CollectionValueSnapshot stores daily collection value for historical tracking
type CollectionValueSnapshot struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SnapshotDate time.Time `json:"snapshot_date" gorm:"uniqueIndex;not null"`
	TotalCards   int       `json:"total_cards"`
	ForSaleCards int       `json:"for_sale_cards"`
	ListedJPY    int       `json:"listed_jpy"`    // sum of live asking prices
	EstimatedJPY int       `json:"estimated_jpy"` // card count x mean listed price
	CreatedAt    time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []CollectionValueSnapshot `json:"snapshots"`
	Period    string                    `json:"period"` // "week", "month", "year", "all"
}
