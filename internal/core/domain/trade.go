package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade is a single execution reported by the live trade feed.
type Trade struct {
	ID         string          `json:"id"`
	Venue      string          `json:"venue"`
	Price      decimal.Decimal `json:"price"`
	BaseAmount decimal.Decimal `json:"base_amount"`
	Side       string          `json:"side"`
	ExecutedAt time.Time       `json:"executed_at"`
}
