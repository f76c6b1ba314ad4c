package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/codycordova/oracled/internal/core/domain"
	"github.com/codycordova/oracled/internal/core/ports"
	"github.com/codycordova/oracled/pkg/ttlcache"
)

type mockSource struct {
	name  string
	quote *domain.Quote
	calls int32
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) FetchQuote(_ context.Context) *domain.Quote {
	atomic.AddInt32(&m.calls, 1)
	return m.quote
}

func (m *mockSource) numCalls() int {
	return int(atomic.LoadInt32(&m.calls))
}

func quoteWithPrice(source string, price float64) *domain.Quote {
	return domain.NewQuote(source, domain.Price{
		QuotePrice: decimal.NewFromFloat(price),
		BasePrice:  decimal.NewFromInt(1).Div(decimal.NewFromFloat(price)),
	})
}

func newTestService(
	t *testing.T, ttl time.Duration, sources ...ports.PriceSource,
) ports.PriceService {
	t.Helper()
	svc, err := NewPriceService(PriceServiceOpts{
		Sources:        sources,
		Cache:          ttlcache.New(),
		CacheTTL:       ttl,
		RequestTimeout: time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestFallbackToAmmPool(t *testing.T) {
	book := &mockSource{name: "orderbook"}
	tape := &mockSource{name: "tradetape"}
	pool := &mockSource{name: "ammpool", quote: quoteWithPrice("ammpool", 2.5)}

	svc := newTestService(t, time.Minute, book, tape, pool)

	res := svc.GetAggregatedPrice(context.Background())
	require.NotNil(t, res)
	require.True(t, res.Price.QuotePrice.Equal(decimal.NewFromFloat(2.5)))
	require.False(t, res.Stale)
	require.Nil(t, res.Sources["orderbook"])
	require.Nil(t, res.Sources["tradetape"])
	require.NotNil(t, res.Sources["ammpool"])

	allUp := newTestService(t, time.Minute,
		&mockSource{name: "orderbook", quote: quoteWithPrice("orderbook", 2.4)},
		&mockSource{name: "tradetape", quote: quoteWithPrice("tradetape", 2.6)},
		&mockSource{name: "ammpool", quote: quoteWithPrice("ammpool", 2.5)},
	)
	allRes := allUp.GetAggregatedPrice(context.Background())
	require.Less(t, res.Confidence, allRes.Confidence)
}

func TestResolutionOrderPrefersFirstSource(t *testing.T) {
	book := &mockSource{name: "orderbook", quote: quoteWithPrice("orderbook", 4)}
	tape := &mockSource{name: "tradetape", quote: quoteWithPrice("tradetape", 4.1)}

	svc := newTestService(t, time.Minute, book, tape)

	res := svc.GetAggregatedPrice(context.Background())
	require.True(t, res.Price.QuotePrice.Equal(decimal.NewFromInt(4)))
	// both sources still contribute to confidence
	require.InDelta(t, domain.ConfidenceBase+domain.ConfidenceIncrement, res.Confidence, 1e-9)
}

func TestTotalOutageReturnsWellFormedResult(t *testing.T) {
	svc := newTestService(t, time.Minute,
		&mockSource{name: "orderbook"},
		&mockSource{name: "tradetape"},
		&mockSource{name: "ammpool"},
	)

	res := svc.GetAggregatedPrice(context.Background())
	require.NotNil(t, res)
	require.True(t, res.Stale)
	require.True(t, res.Price.QuotePrice.IsZero())
	require.True(t, res.Price.BasePrice.IsZero())
	require.Equal(t, domain.ConfidenceFloor, res.Confidence)
	require.False(t, res.LastUpdate.IsZero())
}

func TestCacheShieldsUpstreamSources(t *testing.T) {
	book := &mockSource{name: "orderbook", quote: quoteWithPrice("orderbook", 4)}
	svc := newTestService(t, time.Minute, book)

	first := svc.GetAggregatedPrice(context.Background())
	second := svc.GetAggregatedPrice(context.Background())

	require.Equal(t, 1, book.numCalls())
	require.Equal(t, first, second)
}

func TestCacheExpiryTriggersRecomputation(t *testing.T) {
	book := &mockSource{name: "orderbook", quote: quoteWithPrice("orderbook", 4)}
	svc := newTestService(t, 50*time.Millisecond, book)

	svc.GetAggregatedPrice(context.Background())
	time.Sleep(80 * time.Millisecond)
	svc.GetAggregatedPrice(context.Background())

	require.Equal(t, 2, book.numCalls())
}

func TestUsdDenomination(t *testing.T) {
	book := &mockSource{name: "orderbook", quote: quoteWithPrice("orderbook", 4)}
	usd := &mockSource{name: "usdrate", quote: quoteWithPrice("usdrate", 0.5)}

	svc, err := NewPriceService(PriceServiceOpts{
		Sources:        []ports.PriceSource{book},
		Cache:          ttlcache.New(),
		CacheTTL:       time.Minute,
		RequestTimeout: time.Second,
		UsdRateSource:  usd,
	})
	require.NoError(t, err)

	res := svc.GetAggregatedPrice(context.Background())
	require.True(t, res.Price.UsdPrice.Equal(decimal.NewFromInt(2)))
}

func TestInvalidOpts(t *testing.T) {
	tests := []struct {
		name string
		opts PriceServiceOpts
	}{
		{"no sources", PriceServiceOpts{
			Cache: ttlcache.New(), CacheTTL: time.Second, RequestTimeout: time.Second,
		}},
		{"no cache", PriceServiceOpts{
			Sources: []ports.PriceSource{&mockSource{name: "orderbook"}},
			CacheTTL: time.Second, RequestTimeout: time.Second,
		}},
		{"bad ttl", PriceServiceOpts{
			Sources: []ports.PriceSource{&mockSource{name: "orderbook"}},
			Cache:   ttlcache.New(), RequestTimeout: time.Second,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPriceService(tt.opts)
			require.Error(t, err)
		})
	}
}
