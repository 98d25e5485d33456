// devserver is a local stand-in for the game backend: it mints tokens,
// serves a fixed tile catalog, and answers channel requests with the same
// pushes the real backend sends. In-memory only, one board per process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shii-park/metasugo-client/internal/protocol"
)

var signingKey = []byte("devserver-local-secret")

const totalTiles = 12

func main() {
	_ = godotenv.Load()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	addr := os.Getenv("DEVSERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{Addr: addr, Handler: routes(log)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("devserver listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("devserver failed", zap.Error(err))
	}
}

func routes(log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Post("/token", issueToken(log))
	r.Get("/tiles", serveCatalog)
	r.Get("/events/{segment}", serveCatalog)
	r.Get("/dice", serveDice)
	r.Post("/gamble", serveGamble(log))
	r.Get("/ws", wsHandler(log))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

func issueToken(log *zap.Logger) http.HandlerFunc {
	var seq int
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seq++
		userID := fmt.Sprintf("player-%d", seq)
		mu.Unlock()

		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": userID,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := tok.SignedString(signingKey)
		if err != nil {
			http.Error(w, "failed to sign token", http.StatusInternalServerError)
			return
		}
		log.Info("issued token", zap.String("userID", userID))
		writeJSON(w, map[string]string{"token": signed, "userID": userID})
	}
}

// subjectOf verifies the bearer token and returns its sub claim.
func subjectOf(r *http.Request) (string, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return "", fmt.Errorf("no token")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return signingKey, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token without subject")
	}
	return sub, nil
}

func serveCatalog(w http.ResponseWriter, r *http.Request) {
	if _, err := subjectOf(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(boardJSON))
}

func serveDice(w http.ResponseWriter, r *http.Request) {
	if _, err := subjectOf(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]int{"value": rand.Intn(6) + 1})
}

func serveGamble(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := subjectOf(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var env protocol.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Type != protocol.TypeSubmitGamble {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var req protocol.SubmitGamble
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		res := resolveGamble(userID, req, 1000)
		log.Info("gamble resolved", zap.String("userID", userID), zap.Bool("won", res.Won))
		payload, _ := json.Marshal(res)
		writeJSON(w, protocol.Envelope{Type: protocol.TypeGambleResult, Payload: payload})
	}
}

// resolveGamble rolls against 3.5: High wins on 4-6, Low on 1-3.
func resolveGamble(userID string, req protocol.SubmitGamble, money int) protocol.GambleResult {
	dice := rand.Intn(6) + 1
	won := (req.Choice == protocol.GambleHigh && dice >= 4) || (req.Choice == protocol.GambleLow && dice <= 3)
	amount := req.Bet
	if !won {
		amount = -req.Bet
	}
	return protocol.GambleResult{
		UserID:     userID,
		DiceResult: dice,
		Choice:     string(req.Choice),
		Won:        won,
		Amount:     amount,
		NewMoney:   money + amount,
	}
}

// player is one connected client's board state.
type player struct {
	mu       sync.Mutex
	userID   string
	position int
	money    int
}

func wsHandler(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := subjectOf(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		p := &player{userID: userID, money: 1000}
		log.Info("channel open", zap.String("userID", userID))

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("channel read ended", zap.String("userID", userID), zap.Error(err))
				}
				return
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				push(r.Context(), conn, protocol.TypeError, protocol.ServerError{Message: "bad json"})
				continue
			}
			handleFrame(r.Context(), log, conn, p, env)
		}
	}
}

func handleFrame(ctx context.Context, log *zap.Logger, conn *websocket.Conn, p *player, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeRollDice:
		dice := rand.Intn(6) + 1
		p.mu.Lock()
		p.position += dice
		if p.position > totalTiles {
			p.position = totalTiles
		}
		pos, money := p.position, p.money
		p.mu.Unlock()

		push(ctx, conn, protocol.TypeDiceResult, protocol.DiceResult{UserID: p.userID, DiceResult: dice})
		push(ctx, conn, protocol.TypePlayerMoved, protocol.PlayerMoved{UserID: p.userID, NewPosition: pos})
		// The real backend re-announces money on every roll; clients filter
		// this out when no modal is up. Kept for parity.
		push(ctx, conn, protocol.TypeMoneyChanged, protocol.MoneyChanged{UserID: p.userID, NewMoney: money})
		if pos == totalTiles {
			push(ctx, conn, protocol.TypePlayerFinished, protocol.PlayerFinished{UserID: p.userID, Money: money})
		}

	case protocol.TypeSubmitChoice:
		var req protocol.SubmitChoice
		_ = json.Unmarshal(env.Payload, &req)
		p.mu.Lock()
		if req.Selection >= 0 && req.Selection <= totalTiles {
			p.position = req.Selection
		}
		pos := p.position
		p.mu.Unlock()
		push(ctx, conn, protocol.TypePlayerMoved, protocol.PlayerMoved{UserID: p.userID, NewPosition: pos})

	case protocol.TypeSubmitQuiz:
		var req protocol.SubmitQuiz
		_ = json.Unmarshal(env.Payload, &req)
		reward := 0
		if req.Selection == 0 { // option 0 is always "correct" on the dev board
			reward = 500
		}
		p.mu.Lock()
		p.money += reward
		money := p.money
		p.mu.Unlock()
		push(ctx, conn, protocol.TypeMoneyChanged, protocol.MoneyChanged{UserID: p.userID, NewMoney: money})

	case protocol.TypeSubmitGamble:
		var req protocol.SubmitGamble
		_ = json.Unmarshal(env.Payload, &req)
		p.mu.Lock()
		res := resolveGamble(p.userID, req, p.money)
		p.money = res.NewMoney
		p.mu.Unlock()
		push(ctx, conn, protocol.TypeGambleResult, res)

	default:
		log.Debug("unknown frame", zap.String("type", string(env.Type)))
		push(ctx, conn, protocol.TypeError, protocol.ServerError{Message: "unknown type"})
	}
}

func push(ctx context.Context, conn *websocket.Conn, t protocol.MessageType, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(protocol.Envelope{Type: t, Payload: body})
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// boardJSON is the fixed dev board: 12 tiles, one of each flavor.
const boardJSON = `[
	{"id":1,"kind":"normal","detail":"","prev_ids":[],"next_ids":[2]},
	{"id":2,"kind":"profit","detail":"","effect":{"type":"profit","amount":500},"prev_ids":[1],"next_ids":[3]},
	{"id":3,"kind":"quiz","detail":"","effect":{"type":"quiz","quizID":1},"prev_ids":[2],"next_ids":[4]},
	{"id":4,"kind":"profit","detail":"","effect":{"type":"profit","amount":1000},"prev_ids":[3],"next_ids":[5]},
	{"id":5,"kind":"loss","detail":"","effect":{"type":"loss","amount":-300},"prev_ids":[4],"next_ids":[6]},
	{"id":6,"kind":"branch","detail":"","effect":{"type":"branch","routes":[7,9]},"prev_ids":[5],"next_ids":[7,9]},
	{"id":7,"kind":"neighbor","detail":"隣のプレイヤーから100円もらう","effect":{"type":"neighbor","amount":100},"prev_ids":[6],"next_ids":[8]},
	{"id":8,"kind":"overall","detail":"全員に50円くばる","effect":{"type":"overall","amount":-50},"prev_ids":[7],"next_ids":[10]},
	{"id":9,"kind":"gamble","detail":"","effect":{"type":"gamble","min":100,"max":500},"prev_ids":[6],"next_ids":[10]},
	{"id":10,"kind":"normal","detail":"","prev_ids":[8,9],"next_ids":[11]},
	{"id":11,"kind":"loss","detail":"","effect":{"type":"loss","amount":-200},"prev_ids":[10],"next_ids":[12]},
	{"id":12,"kind":"goal","detail":"","prev_ids":[11],"next_ids":[]}
]`
