package tradetape

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

const sourceName = "tradetape"

type tapeTrade struct {
	ID         string `json:"id"`
	Price      string `json:"price"`
	BaseAmount string `json:"base_amount"`
}

type tapeResponse struct {
	Trades []tapeTrade `json:"trades"`
}

type service struct {
	apiURL     string
	baseAsset  string
	quoteAsset string
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewService returns a price source deriving the pair price from the most
// recent execution on a venue's trade tape. It covers the case of an empty
// order book on a thin market, where the tape still remembers a price.
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
		return s.fetchTape(ctx)
	})
	if err != nil {
		log.WithError(err).Debugf("%s: failed to fetch quote", sourceName)
		return nil
	}

	return s.normalize(res.(*tapeResponse))
}

func (s *service) fetchTape(ctx context.Context) (*tapeResponse, error) {
	endpoint := fmt.Sprintf(
		"%s/trades?base=%s&counter=%s&order=desc&limit=1",
		s.apiURL, url.QueryEscape(s.baseAsset), url.QueryEscape(s.quoteAsset),
	)

	status, resp, err := httputil.NewHTTPRequest(ctx, "GET", endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("trade tape request failed with status %d", status)
	}

	tape := &tapeResponse{}
	if err := json.Unmarshal([]byte(resp), tape); err != nil {
		return nil, fmt.Errorf("malformed trade tape payload: %w", err)
	}
	return tape, nil
}

func (s *service) normalize(tape *tapeResponse) *domain.Quote {
	if len(tape.Trades) <= 0 {
		return nil
	}

	last := tape.Trades[0]
	price, err := decimal.NewFromString(last.Price)
	if err != nil || price.IsNegative() || price.IsZero() {
		return nil
	}

	quote := domain.NewQuote(sourceName, domain.Price{
		BasePrice:  mathutil.SafeDiv(decimal.NewFromInt(1), price).Round(8),
		QuotePrice: price,
	})
	if amount, err := decimal.NewFromString(last.BaseAmount); err == nil && !amount.IsNegative() {
		quote.Volume = amount
	}
	return quote
}
