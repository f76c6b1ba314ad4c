package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price expresses one unit of the base asset in the quote asset and, when a
// reference rate is known, in USD. BasePrice is the inverse quotation, one
// unit of the quote asset in base asset terms.
type Price struct {
	BasePrice  decimal.Decimal `json:"base_price"`
	QuotePrice decimal.Decimal `json:"quote_price"`
	UsdPrice   decimal.Decimal `json:"usd_price"`
}

// Quote is a single venue's price snapshot for the aggregated pair. It is a
// value, superseded by newer quotes and never mutated; its only identity is
// the timestamp it was taken at.
type Quote struct {
	Source    string          `json:"source"`
	Price     Price           `json:"price"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Spread    decimal.Decimal `json:"spread"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewQuote returns a quote for the given venue stamped with now.
func NewQuote(source string, price Price) *Quote {
	return &Quote{
		Source:    source,
		Price:     price,
		Timestamp: time.Now(),
	}
}

// IsZero reports whether the quote carries no usable price. Safe on nil.
func (q *Quote) IsZero() bool {
	return q == nil || q.Price.QuotePrice.IsZero()
}
