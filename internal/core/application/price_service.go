package application

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/codycordova/oracled/internal/core/domain"
	"github.com/codycordova/oracled/internal/core/ports"
)

const (
	aggregatedPriceKey = "aggregated_price"
	usdRateKey         = "usd_rate"

	// The reference USD rate moves slowly compared to the pair price, no
	// point hammering the venue for it on every cycle.
	usdRateTTL = time.Minute
)

var (
	aggregationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracled_aggregations_total",
		Help: "Number of aggregation cycles that hit the upstream venues.",
	})
	aggregationOutagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracled_aggregation_outages_total",
		Help: "Number of aggregation cycles where every source failed.",
	})
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracled_price_cache_hits_total",
		Help: "Number of aggregated price requests served from cache.",
	})
)

// PriceServiceOpts groups the dependencies of the aggregator. Sources are
// consulted concurrently but resolved in slice order, the first usable quote
// wins, so callers list them by preference: order book, then trade tape,
// then AMM pools.
type PriceServiceOpts struct {
	Sources        []ports.PriceSource
	Cache          ports.PriceCache
	CacheTTL       time.Duration
	RequestTimeout time.Duration

	// UsdRateSource optionally quotes the quote asset against USD so the
	// combined price can be denominated in USD too. Nil disables the
	// conversion.
	UsdRateSource ports.PriceSource
}

func (o PriceServiceOpts) validate() error {
	if len(o.Sources) <= 0 {
		return fmt.Errorf("missing price sources")
	}
	if o.Cache == nil {
		return fmt.Errorf("missing cache")
	}
	if o.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if o.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

type priceService struct {
	sources        []ports.PriceSource
	cache          ports.PriceCache
	cacheTTL       time.Duration
	requestTimeout time.Duration
	usdRateSource  ports.PriceSource
}

// NewPriceService returns the aggregator combining all configured sources
// into a single confidence-scored price.
func NewPriceService(opts PriceServiceOpts) (ports.PriceService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &priceService{
		sources:        opts.Sources,
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
		requestTimeout: opts.RequestTimeout,
		usdRateSource:  opts.UsdRateSource,
	}, nil
}

// GetAggregatedPrice returns the latest combined price, from cache when
// fresh enough, otherwise recomputed from all sources. The result is always
// non-nil. Expired cache entries are never served past their TTL: a total
// outage yields a fresh zero-price result with floor confidence instead of
// a stale one.
func (s *priceService) GetAggregatedPrice(ctx context.Context) *domain.AggregatedPrice {
	if cached, ok := s.cache.Get(aggregatedPriceKey); ok {
		if res, ok := cached.(*domain.AggregatedPrice); ok {
			cacheHitsTotal.Inc()
			return res
		}
		// impossible unless a foreign value was stored under our key,
		// degrade to a cache miss
		log.Warn("unexpected value type in price cache, recomputing")
	}

	res := s.aggregate(ctx)
	s.cache.Set(aggregatedPriceKey, res, s.cacheTTL)
	return res
}

func (s *priceService) aggregate(ctx context.Context) *domain.AggregatedPrice {
	aggregationsTotal.Inc()

	quotes := s.fetchAllQuotes(ctx)

	perSource := make(map[string]*domain.Quote, len(s.sources))
	resolved := 0
	var combined *domain.Quote
	for i, src := range s.sources {
		perSource[src.Name()] = quotes[i]
		if quotes[i].IsZero() {
			continue
		}
		resolved++
		if combined == nil {
			combined = quotes[i]
		}
	}

	res := &domain.AggregatedPrice{
		Sources:    perSource,
		Confidence: domain.ConfidenceForSources(resolved),
		LastUpdate: time.Now(),
	}

	if combined == nil {
		aggregationOutagesTotal.Inc()
		log.Warn("all price sources failed, returning zero price with floor confidence")
		res.Stale = true
		return res
	}

	res.Price = combined.Price
	if rate := s.usdRate(ctx); !rate.IsZero() {
		res.Price.UsdPrice = combined.Price.QuotePrice.Mul(rate).Round(8)
	}
	return res
}

// fetchAllQuotes fans out to every source concurrently and joins all
// outcomes. Each call is bounded by the request timeout; a source that
// misses it resolves to nil like any other failure and its late result is
// dropped with the cancelled context.
func (s *priceService) fetchAllQuotes(ctx context.Context) []*domain.Quote {
	quotes := make([]*domain.Quote, len(s.sources))

	eg := &errgroup.Group{}
	for i, src := range s.sources {
		i, src := i, src
		eg.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
			defer cancel()
			quotes[i] = src.FetchQuote(cctx)
			return nil
		})
	}
	// the sources never return errors, Wait is just a join
	//nolint:errcheck
	eg.Wait()

	return quotes
}

func (s *priceService) usdRate(ctx context.Context) decimal.Decimal {
	if s.usdRateSource == nil {
		return decimal.Zero
	}

	if cached, ok := s.cache.Get(usdRateKey); ok {
		if rate, ok := cached.(decimal.Decimal); ok {
			return rate
		}
	}

	cctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	quote := s.usdRateSource.FetchQuote(cctx)
	if quote.IsZero() {
		return decimal.Zero
	}

	rate := quote.Price.QuotePrice
	s.cache.Set(usdRateKey, rate, usdRateTTL)
	return rate
}
