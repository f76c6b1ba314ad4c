package ports

import (
	"context"
	"time"

	"github.com/codycordova/oracled/internal/core/domain"
)

// PriceSource is a single upstream venue adapter. FetchQuote returns nil on
// any failure (timeout, malformed payload, missing data); adapters never
// propagate errors to the caller so that one failing venue cannot abort an
// aggregation cycle.
type PriceSource interface {
	Name() string
	FetchQuote(ctx context.Context) *domain.Quote
}

// PriceService produces the combined confidence-scored price. The returned
// result is always non-nil and well-formed, a zero price with floor
// confidence under total outage.
type PriceService interface {
	GetAggregatedPrice(ctx context.Context) *domain.AggregatedPrice
}

// PriceCache memoizes expensive upstream results with per-entry expiry.
type PriceCache interface {
	Set(key string, value interface{}, ttl time.Duration)
	Get(key string) (interface{}, bool)
	Clear()
	Size() int
}

// TradeStreamer maintains a long-lived subscription to a live trade feed.
// TradeChan is closed when the streamer is stopped or gives up reconnecting
// for good.
type TradeStreamer interface {
	Start() error
	Stop()
	TradeChan() <-chan domain.Trade
}
