// Package channel manages the persistent connection that carries dice,
// movement, and money synchronization. One writer goroutine owns the socket
// and an outbound FIFO; requests submitted before the handshake completes
// are queued and flushed in order exactly once on open. Inbound frames are
// decoded and routed through a single dispatch switch to optional handlers.
package channel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shii-park/metasugo-client/internal/protocol"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

var ErrClosed = errors.New("channel closed")

const writeTimeout = 3 * time.Second

// Handlers receives decoded server pushes. Nil entries no-op. Handlers that
// react to player-scoped pushes must compare the message's userID against
// the local identity; the channel is multiplexed across every player on the
// board.
type Handlers struct {
	DiceResult           func(userID string, value int)
	PlayerMoved          func(userID string, newPosition int)
	MoneyChanged         func(userID string, newMoney int)
	BranchChoiceRequired func(tileID int, options []int)
	QuizRequired         func(tileID int, quiz protocol.QuizData)
	GambleRequired       func(tileID int, referenceValue int)
	GambleResult         func(res protocol.GambleResult)
	PlayerFinished       func(userID string, money int)
	PlayerStatusChanged  func(userID string, status string, value int)
	ServerError          func(message string)
}

// Client is one connection instance. Closed is terminal; reconnecting means
// constructing a new Client.
type Client struct {
	log      *zap.Logger
	handlers Handlers

	outbox chan []byte
	ready  chan struct{} // closed once the handshake succeeds
	done   chan struct{} // closed on teardown

	closeOnce sync.Once

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	closeErr error
}

// Dial starts connecting immediately and returns without waiting for the
// handshake. The token authenticates the handshake via the Authorization
// header. The caller that constructed the client exclusively owns Close.
func Dial(ctx context.Context, url, token string, handlers Handlers, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		log:      log,
		handlers: handlers,
		outbox:   make(chan []byte, 64),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
	go c.connect(ctx, url, token)
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the channel reaches its terminal state.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the channel closed, nil for a clean close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Client) RollDice() error { return c.send(protocol.RollDice{}) }

func (c *Client) SubmitChoice(tileID int) error {
	return c.send(protocol.SubmitChoice{Selection: tileID})
}

func (c *Client) SubmitQuiz(option int) error {
	return c.send(protocol.SubmitQuiz{Selection: option})
}

func (c *Client) SubmitGamble(bet int, choice protocol.GambleChoice) error {
	return c.send(protocol.SubmitGamble{Bet: bet, Choice: choice})
}

// send encodes and enqueues. While Connecting the frame just sits in the
// FIFO; the writer flushes it after open, preserving submission order.
func (c *Client) send(msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close is idempotent and safe from any goroutine.
func (c *Client) Close() error {
	c.shutdown(nil)
	return c.Err()
}

func (c *Client) connect(ctx context.Context, url, token string) {
	opts := &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + token}},
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		c.log.Warn("channel dial failed", zap.Error(err))
		c.shutdown(err)
		return
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while the handshake was in flight.
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	close(c.ready)
	go c.writeLoop(ctx)
	c.readLoop(ctx)
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.log.Warn("channel write failed", zap.Error(err))
				c.shutdown(err)
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.shutdown(nil)
			default:
				select {
				case <-c.done:
					// Our own Close raced the read; not an error.
				default:
					c.log.Warn("channel read failed", zap.Error(err))
					c.shutdown(err)
				}
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// Malformed or unknown frames are dropped, never fatal.
			c.log.Warn("dropping frame", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Inbound) {
	h := c.handlers
	switch m := msg.(type) {
	case protocol.DiceResult:
		if h.DiceResult != nil {
			h.DiceResult(m.UserID, m.DiceResult)
		}
	case protocol.PlayerMoved:
		if h.PlayerMoved != nil {
			h.PlayerMoved(m.UserID, m.NewPosition)
		}
	case protocol.MoneyChanged:
		if h.MoneyChanged != nil {
			h.MoneyChanged(m.UserID, m.NewMoney)
		}
	case protocol.BranchChoiceRequired:
		if h.BranchChoiceRequired != nil {
			h.BranchChoiceRequired(m.TileID, m.Options)
		}
	case protocol.QuizRequired:
		if h.QuizRequired != nil {
			h.QuizRequired(m.TileID, m.QuizData)
		}
	case protocol.GambleRequired:
		if h.GambleRequired != nil {
			h.GambleRequired(m.TileID, m.ReferenceValue)
		}
	case protocol.GambleResult:
		if h.GambleResult != nil {
			h.GambleResult(m)
		}
	case protocol.PlayerFinished:
		if h.PlayerFinished != nil {
			h.PlayerFinished(m.UserID, m.Money)
		}
	case protocol.PlayerStatusChanged:
		if h.PlayerStatusChanged != nil {
			h.PlayerStatusChanged(m.UserID, m.Status, m.Value)
		}
	case protocol.ServerError:
		if h.ServerError != nil {
			h.ServerError(m.Message)
		}
	}
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.closeErr = cause
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			err := conn.Close(websocket.StatusNormalClosure, "bye")
			// A clean teardown often finds the socket already gone; only an
			// errored teardown keeps the close handshake failure attached.
			if err != nil && cause != nil {
				c.mu.Lock()
				c.closeErr = multierr.Append(c.closeErr, err)
				c.mu.Unlock()
			}
		}
		close(c.done)
	})
}
