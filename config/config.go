package config

import (
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// FeedListeningPortKey is the port where the websocket feed interface listens on.
	FeedListeningPortKey = "FEED_LISTENING_PORT"
	// HTTPListeningPortKey is the port where the HTTP price facade listens on.
	HTTPListeningPortKey = "HTTP_LISTENING_PORT"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// OrderBookEndpointKey is the base url of the order-book venue REST API.
	OrderBookEndpointKey = "ORDERBOOK_ENDPOINT"
	// TradeTapeEndpointKey is the base url of the trade-tape venue REST API.
	TradeTapeEndpointKey = "TRADETAPE_ENDPOINT"
	// AmmPoolEndpointKey is the base url of the AMM venue REST API.
	AmmPoolEndpointKey = "AMMPOOL_ENDPOINT"
	// TradeStreamURLKey is the websocket url of the live trade feed.
	TradeStreamURLKey = "TRADE_STREAM_URL"
	// PriceRequestTimeoutKey are the milliseconds to wait for upstream venue responses before timeouts.
	PriceRequestTimeoutKey = "PRICE_REQUEST_TIMEOUT"
	// PriceCacheTTLKey are the milliseconds an aggregated price stays fresh in cache.
	PriceCacheTTLKey = "PRICE_CACHE_TTL"
	// BroadcastIntervalKey are the milliseconds between two price broadcasts to subscribers.
	BroadcastIntervalKey = "BROADCAST_INTERVAL"
	// HeartbeatIntervalKey are the milliseconds between two liveness pings to a subscriber.
	HeartbeatIntervalKey = "HEARTBEAT_INTERVAL"
	// MaxMessageSizeKey is the inbound subscriber message size ceiling in bytes.
	MaxMessageSizeKey = "MAX_MESSAGE_SIZE"
	// ReconnectBaseDelayKey are the milliseconds of the first trade stream reconnect delay.
	ReconnectBaseDelayKey = "RECONNECT_BASE_DELAY"
	// ReconnectMaxDelayKey are the milliseconds capping the trade stream reconnect delay.
	ReconnectMaxDelayKey = "RECONNECT_MAX_DELAY"
	// ReconnectMaxAttemptsKey is the number of consecutive reconnect failures after which the trade stream gives up.
	ReconnectMaxAttemptsKey = "RECONNECT_MAX_ATTEMPTS"
	// AllowedOriginsKey is the list of origins accepted by the websocket feed. Empty means any.
	AllowedOriginsKey = "ALLOWED_ORIGINS"
	// UpstreamRateLimitKey represents number of requests per second the adapters make to upstream venues.
	UpstreamRateLimitKey = "UPSTREAM_RATE_LIMIT"
	// UpstreamRateBurstKey represents number of burst tokens permitted towards upstream venues.
	UpstreamRateBurstKey = "UPSTREAM_RATE_BURST"
	// StatsIntervalKey defines interval in seconds for printing basic runtime statistics.
	StatsIntervalKey = "STATS_INTERVAL"
	// EnableProfilerKey enables periodic runtime statistics logging.
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsDumpDirKey is the directory where prometheus metrics snapshots are dumped.
	StatsDumpDirKey = "STATS_DUMP_DIR"
	// BaseAssetKey is the ticker of the base asset of the aggregated pair.
	BaseAssetKey = "BASE_ASSET"
	// QuoteAssetKey is the ticker of the quote asset of the aggregated pair.
	QuoteAssetKey = "QUOTE_ASSET"
)

var vip *viper.Viper

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("ORACLE")
	vip.AutomaticEnv()

	vip.SetDefault(FeedListeningPortKey, 9945)
	vip.SetDefault(HTTPListeningPortKey, 9946)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(OrderBookEndpointKey, "https://horizon.stellar.org")
	vip.SetDefault(TradeTapeEndpointKey, "https://horizon.stellar.org")
	vip.SetDefault(AmmPoolEndpointKey, "https://horizon.stellar.org")
	vip.SetDefault(TradeStreamURLKey, "wss://api.example.com/trades")
	vip.SetDefault(PriceRequestTimeoutKey, 7000)
	vip.SetDefault(PriceCacheTTLKey, 5000)
	vip.SetDefault(BroadcastIntervalKey, 5000)
	vip.SetDefault(HeartbeatIntervalKey, 30000)
	vip.SetDefault(MaxMessageSizeKey, 4096)
	vip.SetDefault(ReconnectBaseDelayKey, 1000)
	vip.SetDefault(ReconnectMaxDelayKey, 30000)
	vip.SetDefault(ReconnectMaxAttemptsKey, 10)
	vip.SetDefault(AllowedOriginsKey, []string{})
	vip.SetDefault(UpstreamRateLimitKey, 10)
	vip.SetDefault(UpstreamRateBurstKey, 1)
	vip.SetDefault(StatsIntervalKey, 600)
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsDumpDirKey, "stats")
	vip.SetDefault(BaseAssetKey, "CODY")
	vip.SetDefault(QuoteAssetKey, "XLM")

	if err := validate(); err != nil {
		log.WithError(err).Panic("error while validating config")
	}
}

// GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

// GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetBool ...
func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetStringSlice ...
func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

// GetDuration reads a milliseconds key as a time.Duration.
func GetDuration(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Millisecond
}

// Set overrides a key at runtime. Meant for tests.
func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func validate() error {
	for _, key := range []string{
		OrderBookEndpointKey, TradeTapeEndpointKey, AmmPoolEndpointKey,
		TradeStreamURLKey,
	} {
		endpoint := vip.GetString(key)
		if _, err := url.Parse(endpoint); err != nil {
			return fmt.Errorf("%s is not a valid url: %s", key, endpoint)
		}
	}

	for _, key := range []string{
		PriceRequestTimeoutKey, PriceCacheTTLKey, BroadcastIntervalKey,
		HeartbeatIntervalKey, MaxMessageSizeKey, ReconnectBaseDelayKey,
		ReconnectMaxDelayKey,
	} {
		if vip.GetInt(key) <= 0 {
			return fmt.Errorf("%s must be a positive number", key)
		}
	}

	if vip.GetInt(ReconnectMaxAttemptsKey) < 1 {
		return fmt.Errorf("%s must be at least 1", ReconnectMaxAttemptsKey)
	}

	if vip.GetInt(ReconnectBaseDelayKey) > vip.GetInt(ReconnectMaxDelayKey) {
		return fmt.Errorf(
			"%s cannot exceed %s", ReconnectBaseDelayKey, ReconnectMaxDelayKey,
		)
	}

	return nil
}
