package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/codycordova/oracled/config"
	"github.com/codycordova/oracled/internal/core/application"
	"github.com/codycordova/oracled/internal/core/ports"
	"github.com/codycordova/oracled/internal/infrastructure/pricesource/ammpool"
	"github.com/codycordova/oracled/internal/infrastructure/pricesource/orderbook"
	"github.com/codycordova/oracled/internal/infrastructure/pricesource/tradetape"
	"github.com/codycordova/oracled/internal/infrastructure/tradestream"
	"github.com/codycordova/oracled/internal/interfaces/httpfacade"
	"github.com/codycordova/oracled/internal/interfaces/wsfeed"
	"github.com/codycordova/oracled/pkg/stats"
	"github.com/codycordova/oracled/pkg/ttlcache"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	baseAsset := config.GetString(config.BaseAssetKey)
	quoteAsset := config.GetString(config.QuoteAssetKey)

	limiter := rate.NewLimiter(
		rate.Limit(config.GetInt(config.UpstreamRateLimitKey)),
		config.GetInt(config.UpstreamRateBurstKey),
	)

	bookSource, err := orderbook.NewService(
		config.GetString(config.OrderBookEndpointKey), baseAsset, quoteAsset, limiter,
	)
	if err != nil {
		log.WithError(err).Panic("error while creating order book source")
	}
	tapeSource, err := tradetape.NewService(
		config.GetString(config.TradeTapeEndpointKey), baseAsset, quoteAsset, limiter,
	)
	if err != nil {
		log.WithError(err).Panic("error while creating trade tape source")
	}
	poolSource, err := ammpool.NewService(
		config.GetString(config.AmmPoolEndpointKey), baseAsset, quoteAsset, limiter,
	)
	if err != nil {
		log.WithError(err).Panic("error while creating amm pool source")
	}
	// the quote asset traded against USD on the same tape gives the
	// reference rate for USD denomination
	usdRateSource, err := tradetape.NewService(
		config.GetString(config.TradeTapeEndpointKey), quoteAsset, "USD", limiter,
	)
	if err != nil {
		log.WithError(err).Panic("error while creating usd rate source")
	}

	priceSvc, err := application.NewPriceService(application.PriceServiceOpts{
		Sources:        []ports.PriceSource{bookSource, tapeSource, poolSource},
		Cache:          ttlcache.New(),
		CacheTTL:       config.GetDuration(config.PriceCacheTTLKey),
		RequestTimeout: config.GetDuration(config.PriceRequestTimeoutKey),
		UsdRateSource:  usdRateSource,
	})
	if err != nil {
		log.WithError(err).Panic("error while creating price service")
	}

	streamer, err := tradestream.NewService(tradestream.Opts{
		URL:         config.GetString(config.TradeStreamURLKey),
		BaseDelay:   config.GetDuration(config.ReconnectBaseDelayKey),
		MaxDelay:    config.GetDuration(config.ReconnectMaxDelayKey),
		MaxAttempts: config.GetInt(config.ReconnectMaxAttemptsKey),
	})
	if err != nil {
		log.WithError(err).Panic("error while creating trade streamer")
	}

	hub, err := wsfeed.NewHub(wsfeed.HubOpts{
		PriceService:      priceSvc,
		TradeStreamer:     streamer,
		BroadcastInterval: config.GetDuration(config.BroadcastIntervalKey),
		HeartbeatInterval: config.GetDuration(config.HeartbeatIntervalKey),
		MaxMessageSize:    int64(config.GetInt(config.MaxMessageSizeKey)),
		AllowedOrigins:    config.GetStringSlice(config.AllowedOriginsKey),
	})
	if err != nil {
		log.WithError(err).Panic("error while creating feed hub")
	}

	priceHandler, err := httpfacade.NewPriceHandler(
		priceSvc, config.GetDuration(config.PriceCacheTTLKey),
	)
	if err != nil {
		log.WithError(err).Panic("error while creating price handler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.GetBool(config.EnableProfilerKey) {
		interval := time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
		stats.EnableRuntimeStatistics(ctx, interval, config.GetString(config.StatsDumpDirKey))
	}

	go func() {
		// permanent trade stream failure is fatal for the live feed only,
		// snapshots keep flowing from the polled sources
		if err := streamer.Start(); err != nil {
			log.WithError(err).Error("trade streamer terminated")
		}
	}()
	hub.Start()

	feedAddr := fmt.Sprintf(":%d", config.GetInt(config.FeedListeningPortKey))
	httpAddr := fmt.Sprintf(":%d", config.GetInt(config.HTTPListeningPortKey))

	feedMux := http.NewServeMux()
	feedMux.HandleFunc("/ws", hub.ServeWS)
	feedServer := &http.Server{Addr: feedAddr, Handler: feedMux}
	facadeServer := &http.Server{Addr: httpAddr, Handler: httpfacade.NewRouter(priceHandler)}

	go func() {
		if err := feedServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Panic("error listening on feed interface")
		}
	}()
	go func() {
		if err := facadeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Panic("error listening on http interface")
		}
	}()

	log.Infof("feed interface is listening on %s", feedAddr)
	log.Infof("http interface is listening on %s", httpAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Debug("shutting down")
	streamer.Stop()
	hub.Stop()
	// nolint:errcheck
	feedServer.Shutdown(ctx)
	// nolint:errcheck
	facadeServer.Shutdown(ctx)
	log.Debug("exiting")
}
