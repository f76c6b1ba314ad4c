package orderbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/order_book", r.URL.Path)
			require.Equal(t, "CODY", r.URL.Query().Get("base"))
			require.Equal(t, "XLM", r.URL.Query().Get("counter"))
			w.WriteHeader(status)
			// nolint:errcheck
			w.Write([]byte(body))
		},
	))
}

func newTestSource(t *testing.T, apiURL string) *service {
	t.Helper()
	src, err := NewService(apiURL, "CODY", "XLM", rate.NewLimiter(rate.Inf, 1))
	require.NoError(t, err)
	return src.(*service)
}

func TestFetchQuote(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{
		"bids": [{"price": "3", "amount": "100"}, {"price": "2.9", "amount": "50"}],
		"asks": [{"price": "5", "amount": "80"}]
	}`)
	defer server.Close()

	quote := newTestSource(t, server.URL).FetchQuote(context.Background())

	require.NotNil(t, quote)
	require.Equal(t, "orderbook", quote.Source)
	require.True(t, quote.Price.QuotePrice.Equal(decimal.NewFromInt(4)))
	require.True(t, quote.Bid.Equal(decimal.NewFromInt(3)))
	require.True(t, quote.Ask.Equal(decimal.NewFromInt(5)))
	require.True(t, quote.Spread.Equal(decimal.NewFromInt(2)))
	require.True(t, quote.Volume.Equal(decimal.NewFromInt(230)))
	require.False(t, quote.Timestamp.IsZero())
}

func TestFetchQuoteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty bids", http.StatusOK, `{"bids": [], "asks": [{"price": "5", "amount": "1"}]}`},
		{"empty asks", http.StatusOK, `{"bids": [{"price": "3", "amount": "1"}], "asks": []}`},
		{"zero book", http.StatusOK, `{"bids": [{"price": "0", "amount": "0"}], "asks": [{"price": "0", "amount": "0"}]}`},
		{"malformed payload", http.StatusOK, `{"bids": "nope"}`},
		{"negative price", http.StatusOK, `{"bids": [{"price": "-1", "amount": "1"}], "asks": [{"price": "5", "amount": "1"}]}`},
		{"upstream error", http.StatusInternalServerError, `oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, tt.body)
			defer server.Close()

			quote := newTestSource(t, server.URL).FetchQuote(context.Background())
			require.Nil(t, quote)
		})
	}
}

func TestFetchQuoteUnreachableVenue(t *testing.T) {
	quote := newTestSource(t, "http://127.0.0.1:1").FetchQuote(context.Background())
	require.Nil(t, quote)
}
