package orderbook

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

const sourceName = "orderbook"

type bookLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

type bookResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

type service struct {
	apiURL     string
	baseAsset  string
	quoteAsset string
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewService returns a price source reading the best bid/ask from a venue's
// live order book.
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
		return s.fetchBook(ctx)
	})
	if err != nil {
		log.WithError(err).Debugf("%s: failed to fetch quote", sourceName)
		return nil
	}

	return s.normalize(res.(*bookResponse))
}

func (s *service) fetchBook(ctx context.Context) (*bookResponse, error) {
	endpoint := fmt.Sprintf(
		"%s/order_book?base=%s&counter=%s",
		s.apiURL, url.QueryEscape(s.baseAsset), url.QueryEscape(s.quoteAsset),
	)

	status, resp, err := httputil.NewHTTPRequest(ctx, "GET", endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("order book request failed with status %d", status)
	}

	book := &bookResponse{}
	if err := json.Unmarshal([]byte(resp), book); err != nil {
		return nil, fmt.Errorf("malformed order book payload: %w", err)
	}
	return book, nil
}

// normalize maps the venue book to a quote. A usable quote needs both sides
// of the book non-empty, an empty or one-sided book yields nil so the
// aggregator falls back to the next source.
func (s *service) normalize(book *bookResponse) *domain.Quote {
	if len(book.Bids) <= 0 || len(book.Asks) <= 0 {
		return nil
	}

	bestBid, err := decimal.NewFromString(book.Bids[0].Price)
	if err != nil || bestBid.IsNegative() {
		return nil
	}
	bestAsk, err := decimal.NewFromString(book.Asks[0].Price)
	if err != nil || bestAsk.IsNegative() {
		return nil
	}
	if bestBid.IsZero() && bestAsk.IsZero() {
		return nil
	}

	mid := mathutil.MidPrice(bestBid, bestAsk)
	quote := domain.NewQuote(sourceName, domain.Price{
		BasePrice:  mathutil.SafeDiv(decimal.NewFromInt(1), mid).Round(8),
		QuotePrice: mid,
	})
	quote.Bid = bestBid
	quote.Ask = bestAsk
	quote.Spread = mathutil.Spread(bestBid, bestAsk)
	quote.Volume = sumAmounts(book.Bids).Add(sumAmounts(book.Asks))
	return quote
}

func sumAmounts(levels []bookLevel) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range levels {
		amount, err := decimal.NewFromString(lvl.Amount)
		if err != nil || amount.IsNegative() {
			continue
		}
		total = total.Add(amount)
	}
	return total
}
