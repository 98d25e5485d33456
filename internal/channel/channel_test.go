package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/shii-park/metasugo-client/internal/protocol"
)

// testServer is a minimal channel peer: it records inbound frame types in
// arrival order and can push raw frames back.
type testServer struct {
	t *testing.T

	mu       sync.Mutex
	received []protocol.MessageType
	auth     string

	gate    chan struct{} // accept waits on this when non-nil
	connCh  chan *websocket.Conn
	httpSrv *httptest.Server
}

func newTestServer(t *testing.T, gate chan struct{}) *testServer {
	s := &testServer{t: t, gate: gate, connCh: make(chan *websocket.Conn, 1)}
	s.httpSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.auth = r.Header.Get("Authorization")
		s.mu.Unlock()
		if s.gate != nil {
			<-s.gate
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.connCh <- conn
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			s.mu.Lock()
			s.received = append(s.received, env.Type)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.httpSrv.Close)
	return s
}

func (s *testServer) url() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http")
}

func (s *testServer) push(conn *websocket.Conn, raw string) {
	if err := conn.Write(context.Background(), websocket.MessageText, []byte(raw)); err != nil {
		s.t.Fatalf("push: %v", err)
	}
}

func (s *testServer) receivedTypes() []protocol.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.MessageType, len(s.received))
	copy(out, s.received)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestQueuedSendsFlushInOrderAfterOpen(t *testing.T) {
	gate := make(chan struct{})
	srv := newTestServer(t, gate)

	c := Dial(context.Background(), srv.url(), "tok", Handlers{}, nil)
	defer c.Close()

	if got := c.State(); got != StateConnecting {
		t.Fatalf("state: got %q, want connecting", got)
	}

	// Submit while the handshake is still gated.
	if err := c.RollDice(); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.SubmitQuiz(2); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.SubmitChoice(14); err != nil {
		t.Fatalf("send: %v", err)
	}

	close(gate)
	<-srv.connCh

	waitFor(t, func() bool { return len(srv.receivedTypes()) == 3 })
	want := []protocol.MessageType{protocol.TypeRollDice, protocol.TypeSubmitQuiz, protocol.TypeSubmitChoice}
	got := srv.receivedTypes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}

	waitFor(t, func() bool { return c.State() == StateOpen })
	srv.mu.Lock()
	auth := srv.auth
	srv.mu.Unlock()
	if auth != "Bearer tok" {
		t.Fatalf("handshake auth: got %q", auth)
	}
}

func TestInboundDispatchAndDropPolicy(t *testing.T) {
	srv := newTestServer(t, nil)

	var (
		mu    sync.Mutex
		dice  []int
		moves []int
	)
	handlers := Handlers{
		DiceResult: func(userID string, v int) {
			mu.Lock()
			dice = append(dice, v)
			mu.Unlock()
		},
		PlayerMoved: func(userID string, pos int) {
			mu.Lock()
			moves = append(moves, pos)
			mu.Unlock()
		},
		// MoneyChanged deliberately unregistered: must silently no-op.
	}

	c := Dial(context.Background(), srv.url(), "tok", handlers, nil)
	defer c.Close()
	conn := <-srv.connCh

	srv.push(conn, `{"type":"DICE_RESULT","payload":{"userID":"u1","diceResult":3}}`)
	srv.push(conn, `this is not json`)
	srv.push(conn, `{"type":"FUTURE_THING","payload":{}}`)
	srv.push(conn, `{"type":"MONEY_CHANGED","payload":{"userID":"u1","newMoney":900}}`)
	srv.push(conn, `{"type":"PLAYER_MOVED","payload":{"userID":"u1","newPosition":5}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(moves) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if len(dice) != 1 || dice[0] != 3 {
		t.Fatalf("dice: got %v", dice)
	}
	if moves[0] != 5 {
		t.Fatalf("moves: got %v", moves)
	}
	// The malformed and unknown frames in between must not have killed the
	// connection: PLAYER_MOVED arrived after them.
	if c.State() != StateOpen {
		t.Fatalf("state: got %q, want open", c.State())
	}
}

func TestCloseIsTerminalAndIdempotent(t *testing.T) {
	srv := newTestServer(t, nil)

	c := Dial(context.Background(), srv.url(), "tok", Handlers{}, nil)
	<-srv.connCh

	waitFor(t, func() bool { return c.State() == StateOpen })
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = c.Close() // second close must not panic

	if c.State() != StateClosed {
		t.Fatalf("state: got %q, want closed", c.State())
	}
	if err := c.RollDice(); err != ErrClosed {
		t.Fatalf("send after close: got %v, want ErrClosed", err)
	}

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("Done not closed")
	}
}

func TestServerCloseReachesClient(t *testing.T) {
	srv := newTestServer(t, nil)

	c := Dial(context.Background(), srv.url(), "tok", Handlers{}, nil)
	defer c.Close()
	conn := <-srv.connCh

	waitFor(t, func() bool { return c.State() == StateOpen })
	_ = conn.Close(websocket.StatusNormalClosure, "bye")

	waitFor(t, func() bool { return c.State() == StateClosed })
	if err := c.Err(); err != nil {
		t.Fatalf("clean server close should not be an error, got %v", err)
	}
}

func TestDialFailureClosesWithError(t *testing.T) {
	c := Dial(context.Background(), "ws://127.0.0.1:1/ws", "tok", Handlers{}, nil)
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("dial failure did not close the channel")
	}
	if c.Err() == nil {
		t.Fatalf("expected a close error")
	}
}
