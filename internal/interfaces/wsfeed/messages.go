package wsfeed

import (
	"encoding/json"
	"time"

	"github.com/codycordova/oracled/internal/core/domain"
)

// Server to client message types.
const (
	MsgTypeHello       = "hello"
	MsgTypePriceUpdate = "price_update"
	MsgTypeTrade       = "trade"
	MsgTypePong        = "pong"
)

// Client to server message types.
const (
	MsgTypePing     = "ping"
	MsgTypeGetPrice = "get_price"
)

type helloMessage struct {
	Type              string   `json:"type"`
	Capabilities      []string `json:"capabilities"`
	HeartbeatInterval int64    `json:"heartbeat_interval_ms"`
	ServerTime        int64    `json:"server_time"`
}

type priceUpdateMessage struct {
	Type string                  `json:"type"`
	Data *domain.AggregatedPrice `json:"data"`
}

type tradeMessage struct {
	Type string       `json:"type"`
	Data domain.Trade `json:"data"`
}

type pongMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"server_time"`
}

type inboundMessage struct {
	Type string `json:"type"`
}

func newHelloPayload(heartbeat time.Duration) []byte {
	return mustMarshal(helloMessage{
		Type: MsgTypeHello,
		Capabilities: []string{
			MsgTypePriceUpdate, MsgTypeTrade, MsgTypePing, MsgTypeGetPrice,
		},
		HeartbeatInterval: heartbeat.Milliseconds(),
		ServerTime:        time.Now().UnixMilli(),
	})
}

func newPriceUpdatePayload(price *domain.AggregatedPrice) []byte {
	return mustMarshal(priceUpdateMessage{Type: MsgTypePriceUpdate, Data: price})
}

func newTradePayload(trade domain.Trade) []byte {
	return mustMarshal(tradeMessage{Type: MsgTypeTrade, Data: trade})
}

func newPongPayload() []byte {
	return mustMarshal(pongMessage{Type: MsgTypePong, ServerTime: time.Now().UnixMilli()})
}

// mustMarshal panics on failure. The message types above are all plain
// structs of marshalable fields, a failure here is a programmer error.
func mustMarshal(v interface{}) []byte {
	buf, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return buf
}
