package models

import "time"

// Bundle is a priced lot of two or more distinct cards sold together
// at a discount off the sum of their individual prices.
type Bundle struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Certs     []string  `json:"certs" gorm:"serializer:json"`
	PriceJPY  int       `json:"price_jpy"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BundleQuote is the discount arithmetic behind a bundle price
type BundleQuote struct {
	Original    int     `json:"original_jpy"`
	Discounted  int     `json:"discounted_jpy"`
	DiscountPct float64 `json:"discount_pct"`
}

// CreateBundleRequest is the API payload for logging a new bundle
type CreateBundleRequest struct {
	Certs []string `json:"certs" binding:"required"`
}

// CollectionStats summarizes the priced portion of the collection
type CollectionStats struct {
	TotalCards     int     `json:"total_cards"`
	ForSaleCards   int     `json:"for_sale_cards"`
	ForSalePct     float64 `json:"for_sale_pct"`
	MinPriceJPY    int     `json:"min_price_jpy"`
	MaxPriceJPY    int     `json:"max_price_jpy"`
	AvgPriceJPY    int     `json:"avg_price_jpy"`
	StdPriceJPY    int     `json:"std_price_jpy"`
	EstimatedValue int     `json:"estimated_value_jpy"`
}
