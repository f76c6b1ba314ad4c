package httpfacade

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/codycordova/oracled/internal/core/ports"
)

// PriceHandler serves the aggregated price as a plain JSON response with a
// Cache-Control max-age matching the aggregator's own TTL, so HTTP caches
// in front of the daemon shield it the same way its internal cache shields
// the upstream venues.
type PriceHandler struct {
	priceSvc ports.PriceService
	maxAge   time.Duration
}

func NewPriceHandler(
	priceSvc ports.PriceService, maxAge time.Duration,
) (*PriceHandler, error) {
	if priceSvc == nil {
		return nil, fmt.Errorf("missing price service")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive")
	}
	return &PriceHandler{priceSvc, maxAge}, nil
}

func (h *PriceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := h.priceSvc.GetAggregatedPrice(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(
		"Cache-Control",
		fmt.Sprintf("public, max-age=%d", int(h.maxAge.Seconds())),
	)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.WithError(err).Warn("failed to write price response")
	}
}

// NewRouter returns the facade mux: price endpoint, health check and
// Prometheus metrics.
func NewRouter(priceHandler *PriceHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/price", priceHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// nolint:errcheck
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
