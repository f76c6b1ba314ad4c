package ammpool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/codycordova/oracled/internal/core/domain"
	"github.com/codycordova/oracled/internal/core/ports"
	"github.com/codycordova/oracled/pkg/circuitbreaker"
	"github.com/codycordova/oracled/pkg/httputil"
	"github.com/codycordova/oracled/pkg/mathutil"
)

const sourceName = "ammpool"

type poolReserve struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type pool struct {
	ID       string        `json:"id"`
	Reserves []poolReserve `json:"reserves"`
}

type poolsResponse struct {
	Pools []pool `json:"pools"`
}

type service struct {
	apiURL     string
	baseAsset  string
	quoteAsset string
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewService returns a price source deriving the pair price from the reserve
// ratio of constant-product AMM pools. The venue may list several pools for
// the same pair, their prices are combined weighted by base liquidity.
func NewService(
	apiURL, baseAsset, quoteAsset string, limiter *rate.Limiter,
) (ports.PriceSource, error) {
	if len(apiURL) <= 0 {
		return nil, fmt.Errorf("missing api url")
	}
	if limiter == nil {
		return nil, fmt.Errorf("missing rate limiter")
	}

	return &service{
		apiURL:     apiURL,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		cb:         circuitbreaker.NewCircuitBreaker(sourceName),
		limiter:    limiter,
	}, nil
}

func (s *service) Name() string {
	return sourceName
}

func (s *service) FetchQuote(ctx context.Context) *domain.Quote {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.fetchPools(ctx)
	})
	if err != nil {
		log.WithError(err).Debugf("%s: failed to fetch quote", sourceName)
		return nil
	}

	return s.normalize(res.(*poolsResponse))
}

func (s *service) fetchPools(ctx context.Context) (*poolsResponse, error) {
	endpoint := fmt.Sprintf(
		"%s/liquidity_pools?assets=%s",
		s.apiURL,
		url.QueryEscape(fmt.Sprintf("%s:%s", s.baseAsset, s.quoteAsset)),
	)

	status, resp, err := httputil.NewHTTPRequest(ctx, "GET", endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("liquidity pools request failed with status %d", status)
	}

	pools := &poolsResponse{}
	if err := json.Unmarshal([]byte(resp), pools); err != nil {
		return nil, fmt.Errorf("malformed liquidity pools payload: %w", err)
	}
	return pools, nil
}

// normalize combines the reserve-ratio prices of all pools for the pair.
// Pools with a zero base reserve are skipped, the ratio would not be a
// price. An empty result set or all-degenerate pools yield nil.
func (s *service) normalize(res *poolsResponse) *domain.Quote {
	prices := make([]decimal.Decimal, 0, len(res.Pools))
	weights := make([]decimal.Decimal, 0, len(res.Pools))
	totalBase := decimal.Zero

	for _, p := range res.Pools {
		baseReserve, quoteReserve, ok := s.reserves(p)
		if !ok || baseReserve.IsZero() {
			continue
		}
		prices = append(prices, quoteReserve.Div(baseReserve))
		weights = append(weights, baseReserve)
		totalBase = totalBase.Add(baseReserve)
	}

	if len(prices) <= 0 {
		return nil
	}

	price := mathutil.WeightedAverage(prices, weights)
	if price.IsZero() {
		return nil
	}

	quote := domain.NewQuote(sourceName, domain.Price{
		BasePrice:  mathutil.SafeDiv(decimal.NewFromInt(1), price).Round(8),
		QuotePrice: price,
	})
	quote.Volume = totalBase
	return quote
}

func (s *service) reserves(p pool) (base, quote decimal.Decimal, ok bool) {
	var haveBase, haveQuote bool
	for _, r := range p.Reserves {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil || amount.IsNegative() {
			return decimal.Zero, decimal.Zero, false
		}
		switch r.Asset {
		case s.baseAsset:
			base, haveBase = amount, true
		case s.quoteAsset:
			quote, haveQuote = amount, true
		}
	}
	return base, quote, haveBase && haveQuote
}
