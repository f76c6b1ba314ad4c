package tradestream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStreamer(t *testing.T, url string, maxAttempts int) *service {
	t.Helper()
	svc, err := NewService(Opts{
		URL:         url,
		BaseDelay:   time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		MaxAttempts: maxAttempts,
	})
	require.NoError(t, err)
	return svc.(*service)
}

func TestNextDelayIsNonDecreasingAndCapped(t *testing.T) {
	svc, err := NewService(Opts{
		URL:         "ws://localhost:9999",
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 10,
	})
	require.NoError(t, err)
	s := svc.(*service)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		delay := s.nextDelay(attempt)
		require.GreaterOrEqual(t, delay, prev)
		require.LessOrEqual(t, delay, 30*time.Second)
		prev = delay
	}

	require.Equal(t, time.Second, s.nextDelay(1))
	require.Equal(t, 2*time.Second, s.nextDelay(2))
	require.Equal(t, 4*time.Second, s.nextDelay(3))
	require.Equal(t, 30*time.Second, s.nextDelay(10))
}

func TestGiveUpAfterMaxAttempts(t *testing.T) {
	s := newTestStreamer(t, "ws://127.0.0.1:1", 3)

	errChan := make(chan error, 1)
	go func() { errChan <- s.Start() }()

	select {
	case err := <-errChan:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("streamer did not give up in time")
	}

	require.Equal(t, Disconnected, s.State())

	_, more := <-s.TradeChan()
	require.False(t, more)
}

func TestAttemptCounterResetsOnMessage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			defer conn.Close()

			err = conn.WriteMessage(websocket.TextMessage, []byte(
				`{"id": "t1", "price": "4.2", "base_amount": "1", "side": "buy"}`,
			))
			require.NoError(t, err)
			time.Sleep(50 * time.Millisecond)
		},
	))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	s := newTestStreamer(t, url, 5)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// enter the read loop with a dirty counter, one good message must
	// reset it
	attempts, readErr := s.readLoop(conn, 4)
	require.Error(t, readErr)
	require.Equal(t, 0, attempts)

	select {
	case trade := <-s.TradeChan():
		require.Equal(t, "t1", trade.ID)
		require.True(t, trade.Price.Equal(decimal.NewFromFloat(4.2)))
	default:
		t.Fatal("expected a buffered trade")
	}
}

func TestStopShutsDownCleanly(t *testing.T) {
	upgrader := websocket.Upgrader{}
	hold := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			defer conn.Close()
			<-hold
		},
	))
	defer server.Close()
	defer close(hold)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	s := newTestStreamer(t, url, 5)

	errChan := make(chan error, 1)
	go func() { errChan <- s.Start() }()

	require.Eventually(t, func() bool {
		return s.State() == Connected
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("streamer did not stop in time")
	}
	require.Equal(t, Disconnected, s.State())
}

func TestParseTrade(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		ok   bool
	}{
		{"valid", `{"id": "t1", "price": "1.5", "base_amount": "2", "side": "sell", "executed_at": 1700000000}`, true},
		{"missing amount", `{"id": "t2", "price": "1.5"}`, true},
		{"negative price", `{"id": "t3", "price": "-1"}`, false},
		{"unparsable price", `{"id": "t4", "price": "abc"}`, false},
		{"not json", `hello`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade, ok := parseTrade([]byte(tt.msg))
			require.Equal(t, tt.ok, ok)
			if ok {
				require.False(t, trade.Price.IsNegative())
			}
		})
	}
}
