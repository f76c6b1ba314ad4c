package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/codycordova/oracled/internal/core/ports"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracled_feed_connected_clients",
		Help: "Number of currently connected feed subscribers.",
	})
	messagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracled_feed_messages_sent_total",
		Help: "Number of messages enqueued towards subscribers.",
	})
	clientsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracled_feed_clients_evicted_total",
		Help: "Number of subscribers removed from the registry.",
	})
)

// HubOpts defines the parameters needed for creating a Hub with the NewHub
// method.
type HubOpts struct {
	PriceService      ports.PriceService
	TradeStreamer     ports.TradeStreamer
	BroadcastInterval time.Duration
	HeartbeatInterval time.Duration
	MaxMessageSize    int64
	AllowedOrigins    []string
}

func (o HubOpts) validate() error {
	if o.PriceService == nil {
		return fmt.Errorf("missing price service")
	}
	if o.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast interval must be positive")
	}
	if o.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if o.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive")
	}
	return nil
}

// Hub owns the subscriber registry and fans out price snapshots and trade
// events to every connected client. One snapshot is computed and serialized
// per broadcast tick regardless of the number of subscribers.
type Hub struct {
	priceSvc ports.PriceService
	streamer ports.TradeStreamer

	broadcastInterval time.Duration
	heartbeatInterval time.Duration
	maxMessageSize    int64

	upgrader websocket.Upgrader

	clientsMtx *sync.RWMutex
	clients    map[string]*client

	quitChan  chan struct{}
	closeOnce *sync.Once
}

// NewHub returns a broadcast hub ready to accept subscribers. TradeStreamer
// may be nil, in which case only periodic snapshots are served.
func NewHub(opts HubOpts) (*Hub, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Hub{
		priceSvc:          opts.PriceService,
		streamer:          opts.TradeStreamer,
		broadcastInterval: opts.BroadcastInterval,
		heartbeatInterval: opts.HeartbeatInterval,
		maxMessageSize:    opts.MaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		clientsMtx: &sync.RWMutex{},
		clients:    make(map[string]*client),
		quitChan:   make(chan struct{}),
		closeOnce:  &sync.Once{},
	}, nil
}

// originChecker allows any origin when the list is empty, browser-less
// clients included, and exact matches otherwise.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) <= 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if len(origin) <= 0 {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// Start runs the broadcast, relay and liveness loops until Stop is called.
func (h *Hub) Start() {
	go h.broadcastLoop()
	go h.livenessLoop()
	if h.streamer != nil {
		go h.relayLoop()
	}
}

// Stop terminates the loops and disconnects every subscriber.
func (h *Hub) Stop() {
	h.closeOnce.Do(func() {
		close(h.quitChan)
	})

	h.clientsMtx.Lock()
	defer h.clientsMtx.Unlock()
	for id, c := range h.clients {
		c.close(websocket.CloseGoingAway, "server shutting down")
		delete(h.clients, id)
	}
	connectedClients.Set(0)
}

// ServeWS upgrades an HTTP request to a feed subscription. The new client
// immediately receives a hello message and the current price snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("feed: rejected subscriber upgrade")
		return
	}

	c := newClient(conn)
	conn.SetReadLimit(h.maxMessageSize)
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	h.register(c)

	go c.writePump(func() { h.evict(c, websocket.CloseAbnormalClosure, "write failed") })
	go h.readPump(c)

	if c.trySend(newHelloPayload(h.heartbeatInterval)) {
		messagesSentTotal.Inc()
	}
	if c.trySend(h.snapshotPayload()) {
		messagesSentTotal.Inc()
	}
}

// NumClients returns the current size of the subscriber registry.
func (h *Hub) NumClients() int {
	h.clientsMtx.RLock()
	defer h.clientsMtx.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.clientsMtx.Lock()
	defer h.clientsMtx.Unlock()
	h.clients[c.id] = c
	connectedClients.Set(float64(len(h.clients)))
	log.Debugf("feed: subscriber %s connected", c.id)
}

func (h *Hub) evict(c *client, code int, reason string) {
	h.clientsMtx.Lock()
	_, found := h.clients[c.id]
	delete(h.clients, c.id)
	connectedClients.Set(float64(len(h.clients)))
	h.clientsMtx.Unlock()

	c.close(code, reason)
	if found {
		clientsEvictedTotal.Inc()
		log.Debugf("feed: subscriber %s dropped (%s)", c.id, reason)
	}
}

func (h *Hub) broadcastLoop() {
	ticker := time.NewTicker(h.broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.broadcastPrice()
		case <-h.quitChan:
			return
		}
	}
}

// broadcastPrice computes the snapshot once, serializes it once and pushes
// the identical payload to every open subscriber. Slow subscribers are
// dropped rather than awaited.
func (h *Hub) broadcastPrice() {
	h.fanOut(h.snapshotPayload())
}

func (h *Hub) snapshotPayload() []byte {
	ctx, cancel := context.WithTimeout(context.Background(), h.broadcastInterval)
	defer cancel()
	return newPriceUpdatePayload(h.priceSvc.GetAggregatedPrice(ctx))
}

func (h *Hub) relayLoop() {
	for {
		select {
		case trade, more := <-h.streamer.TradeChan():
			if !more {
				log.Debug("feed: trade stream closed, relay loop exiting")
				return
			}
			h.fanOut(newTradePayload(trade))
		case <-h.quitChan:
			return
		}
	}
}

func (h *Hub) livenessLoop() {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range h.snapshotClients() {
				if c.idleSince() > 2*h.heartbeatInterval {
					h.evict(c, websocket.CloseNormalClosure, "liveness timeout")
					continue
				}
				if err := c.ping(); err != nil {
					h.evict(c, websocket.CloseAbnormalClosure, "ping failed")
				}
			}
		case <-h.quitChan:
			return
		}
	}
}

func (h *Hub) fanOut(payload []byte) {
	for _, c := range h.snapshotClients() {
		if !c.trySend(payload) {
			h.evict(c, websocket.CloseTryAgainLater, "send queue overflow")
			continue
		}
		messagesSentTotal.Inc()
	}
}

func (h *Hub) snapshotClients() []*client {
	h.clientsMtx.RLock()
	defer h.clientsMtx.RUnlock()

	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// readPump consumes inbound subscriber messages. Protocol violations are
// isolated to the offending connection: an oversized message is closed with
// CloseMessageTooBig, malformed JSON with CloseInvalidFramePayloadData, and
// unknown message types are logged and ignored.
func (h *Hub) readPump(c *client) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if err == websocket.ErrReadLimit {
				h.evict(c, websocket.CloseMessageTooBig, "message size limit exceeded")
				return
			}
			h.evict(c, websocket.CloseNormalClosure, "read loop ended")
			return
		}

		c.touch()

		msg := inboundMessage{}
		if err := json.Unmarshal(message, &msg); err != nil {
			h.evict(c, websocket.CloseInvalidFramePayloadData, "malformed message")
			return
		}

		switch msg.Type {
		case MsgTypePing:
			if c.trySend(newPongPayload()) {
				messagesSentTotal.Inc()
			}
		case MsgTypeGetPrice:
			if c.trySend(h.snapshotPayload()) {
				messagesSentTotal.Inc()
			}
		default:
			log.Debugf("feed: ignoring unknown message type %q from %s", msg.Type, c.id)
		}
	}
}
