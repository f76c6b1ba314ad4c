package tradestream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/codycordova/oracled/internal/core/domain"
	"github.com/codycordova/oracled/internal/core/ports"
)

const (
	Disconnected State = iota
	Connecting
	Connected
	Backoff
)

type State int

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Backoff:
		return "Backoff"
	default:
		return "Unknown"
	}
}

// Service is a trade streamer exposing its connection state on top of the
// core port, mostly for observability and tests.
type Service interface {
	ports.TradeStreamer
	State() State
}

// Opts defines the parameters needed for creating a trade stream service
// with the NewService method.
type Opts struct {
	URL             string
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	MaxAttempts     int
	TradeBufferSize int
}

func (o Opts) validate() error {
	if len(o.URL) <= 0 {
		return fmt.Errorf("missing stream url")
	}
	if o.BaseDelay <= 0 || o.MaxDelay <= 0 || o.BaseDelay > o.MaxDelay {
		return fmt.Errorf("invalid backoff delays")
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	return nil
}

type wireTrade struct {
	ID         string `json:"id"`
	Price      string `json:"price"`
	BaseAmount string `json:"base_amount"`
	Side       string `json:"side"`
	ExecutedAt int64  `json:"executed_at"`
}

type service struct {
	url         string
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	conn     *websocket.Conn
	connMtx  *sync.Mutex
	state    State
	stateMtx *sync.RWMutex

	tradeChan chan domain.Trade
	quitChan  chan struct{}
	closeOnce *sync.Once
}

// NewService returns a trade streamer that keeps a long-lived websocket
// subscription to the live trade feed, reconnecting with exponential
// backoff and giving up for good after MaxAttempts consecutive failures.
func NewService(opts Opts) (Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	bufSize := opts.TradeBufferSize
	if bufSize <= 0 {
		bufSize = 100
	}

	return &service{
		url:         opts.URL,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		maxAttempts: opts.MaxAttempts,
		connMtx:     &sync.Mutex{},
		state:       Disconnected,
		stateMtx:    &sync.RWMutex{},
		tradeChan:   make(chan domain.Trade, bufSize),
		quitChan:    make(chan struct{}),
		closeOnce:   &sync.Once{},
	}, nil
}

func (s *service) TradeChan() <-chan domain.Trade {
	return s.tradeChan
}

func (s *service) State() State {
	s.stateMtx.RLock()
	defer s.stateMtx.RUnlock()
	return s.state
}

// Start runs the connect/read/backoff loop until Stop is called or the
// reconnect budget is exhausted. It blocks, callers run it in a goroutine.
// On permanent failure the trade channel is closed and an error returned;
// the rest of the process keeps serving cached or polled prices.
func (s *service) Start() error {
	attempts := 0

	for {
		select {
		case <-s.quitChan:
			s.teardown()
			return nil
		default:
		}

		s.setState(Connecting)
		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			attempts++
			if stop := s.backoff(attempts, err); stop {
				return s.giveUp(attempts)
			}
			continue
		}

		s.setConn(conn)
		s.setState(Connected)
		log.Debugf("trade stream connected to %s", s.url)

		attempts, err = s.readLoop(conn, attempts)
		if err == nil {
			// clean stop
			s.teardown()
			return nil
		}

		attempts++
		if stop := s.backoff(attempts, err); stop {
			return s.giveUp(attempts)
		}
	}
}

func (s *service) Stop() {
	s.closeOnce.Do(func() {
		close(s.quitChan)
	})
	s.closeConn()
}

// readLoop consumes messages until the connection drops or Stop is called.
// It returns the running attempt counter, reset to zero as soon as one
// message arrives intact, and a nil error only on clean shutdown.
func (s *service) readLoop(conn *websocket.Conn, attempts int) (int, error) {
	for {
		select {
		case <-s.quitChan:
			return attempts, nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.quitChan:
				return attempts, nil
			default:
			}
			return attempts, err
		}

		attempts = 0

		trade, ok := parseTrade(message)
		if !ok {
			continue
		}

		select {
		case s.tradeChan <- trade:
		default:
			log.Debug("trade buffer full, dropping trade event")
		}
	}
}

// backoff sleeps for the capped exponential delay of the given attempt. It
// reports true when the attempt budget is exhausted or Stop interrupted the
// wait.
func (s *service) backoff(attempts int, cause error) (stop bool) {
	if attempts > s.maxAttempts {
		return true
	}

	s.setState(Backoff)
	delay := s.nextDelay(attempts)
	log.WithError(cause).Warnf(
		"trade stream dropped, reconnecting in %s (attempt %d/%d)",
		delay, attempts, s.maxAttempts,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-s.quitChan:
		return true
	}
}

// nextDelay returns min(baseDelay * 2^(attempt-1), maxDelay).
func (s *service) nextDelay(attempt int) time.Duration {
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.maxDelay {
			return s.maxDelay
		}
	}
	if delay > s.maxDelay {
		return s.maxDelay
	}
	return delay
}

func (s *service) giveUp(attempts int) error {
	s.teardown()

	select {
	case <-s.quitChan:
		return nil
	default:
	}

	err := fmt.Errorf(
		"trade stream gave up after %d consecutive failed attempts, "+
			"a restart is required to resume live trades", attempts-1,
	)
	log.WithError(err).Error("trade stream permanently down")
	return err
}

func (s *service) teardown() {
	s.setState(Disconnected)
	s.closeConn()
	close(s.tradeChan)
}

func (s *service) setConn(conn *websocket.Conn) {
	s.connMtx.Lock()
	defer s.connMtx.Unlock()
	s.conn = conn
}

func (s *service) closeConn() {
	s.connMtx.Lock()
	defer s.connMtx.Unlock()
	if s.conn != nil {
		// nolint:errcheck
		s.conn.Close()
		s.conn = nil
	}
}

func (s *service) setState(state State) {
	s.stateMtx.Lock()
	defer s.stateMtx.Unlock()
	s.state = state
}

func parseTrade(message []byte) (domain.Trade, bool) {
	wire := wireTrade{}
	if err := json.Unmarshal(message, &wire); err != nil {
		return domain.Trade{}, false
	}

	price, err := decimal.NewFromString(wire.Price)
	if err != nil || price.IsNegative() {
		return domain.Trade{}, false
	}

	amount := decimal.Zero
	if len(wire.BaseAmount) > 0 {
		amount, err = decimal.NewFromString(wire.BaseAmount)
		if err != nil || amount.IsNegative() {
			return domain.Trade{}, false
		}
	}

	side := wire.Side
	if side != domain.TradeSideBuy && side != domain.TradeSideSell {
		side = domain.TradeSideBuy
	}

	executedAt := time.Now()
	if wire.ExecutedAt > 0 {
		executedAt = time.Unix(wire.ExecutedAt, 0)
	}

	return domain.Trade{
		ID:         wire.ID,
		Venue:      "stream",
		Price:      price,
		BaseAmount: amount,
		Side:       side,
		ExecutedAt: executedAt,
	}, true
}
