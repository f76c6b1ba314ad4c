package httpfacade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/codycordova/oracled/internal/core/domain"
)

type mockPriceService struct{}

func (m *mockPriceService) GetAggregatedPrice(_ context.Context) *domain.AggregatedPrice {
	return &domain.AggregatedPrice{
		Sources: map[string]*domain.Quote{},
		Price: domain.Price{
			QuotePrice: decimal.NewFromInt(4),
		},
		Confidence: 0.5,
		LastUpdate: time.Unix(1700000000, 0),
	}
}

func TestPriceEndpoint(t *testing.T) {
	handler, err := NewPriceHandler(&mockPriceService{}, 5*time.Second)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(handler))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/price")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Equal(t, "public, max-age=5", resp.Header.Get("Cache-Control"))

	res := &domain.AggregatedPrice{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(res))
	require.True(t, res.Price.QuotePrice.Equal(decimal.NewFromInt(4)))
	require.Equal(t, 0.5, res.Confidence)
}

func TestPriceEndpointRejectsNonGet(t *testing.T) {
	handler, err := NewPriceHandler(&mockPriceService{}, 5*time.Second)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(handler))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/price", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	handler, err := NewPriceHandler(&mockPriceService{}, 5*time.Second)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(handler))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewPriceHandlerValidation(t *testing.T) {
	_, err := NewPriceHandler(nil, time.Second)
	require.Error(t, err)

	_, err = NewPriceHandler(&mockPriceService{}, 0)
	require.Error(t, err)
}
