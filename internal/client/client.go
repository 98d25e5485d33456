// Package client wires one board-page visit together: resolve an identity,
// fetch the catalog, open the channel, and run the progression session. The
// PageSession that opened the channel is the only thing allowed to close it;
// signing out tears the whole page down.
package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shii-park/metasugo-client/internal/api"
	"github.com/shii-park/metasugo-client/internal/channel"
	"github.com/shii-park/metasugo-client/internal/game"
	"github.com/shii-park/metasugo-client/internal/identity"
	"github.com/shii-park/metasugo-client/internal/protocol"
	"github.com/shii-park/metasugo-client/internal/store"
)

type Options struct {
	APIBaseURL      string
	ChannelURL      string
	Segment         string
	LayoutPositions int
	StepDelay       time.Duration
	ForceGoalBranch bool

	Provider identity.Provider
	Store    *store.Store
	Navigate func(next string)
	OnStep   func(step int)
	Log      *zap.Logger
}

// PageSession is one visit to one board segment.
type PageSession struct {
	Session *game.Session
	API     *api.Client
	Store   *store.Store

	ch  *channel.Client
	log *zap.Logger
}

// Open resolves the token, loads the segment's catalog, and dials the
// channel. A token or catalog failure returns an error and nothing is left
// running; the page renders its blocked/unauthenticated state and does not
// retry on its own.
func Open(ctx context.Context, opts Options) (*PageSession, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	st := opts.Store
	if st == nil {
		st = store.New()
	}

	id, err := opts.Provider.Identity(ctx)
	if err != nil {
		log.Warn("identity unavailable, page blocked", zap.Error(err))
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	apiClient := api.NewClient(opts.APIBaseURL, opts.Provider, log)
	cat, err := apiClient.FetchEvents(ctx, opts.Segment)
	if err != nil {
		// Degraded catalog: the page still mounts and shows the error, the
		// state machine just has nowhere to move.
		log.Warn("catalog unavailable", zap.String("segment", opts.Segment), zap.Error(err))
	}

	sess := game.NewSession(game.Config{
		UserID:          id.UserID,
		Catalog:         cat,
		Store:           st,
		Dice:            apiClient,
		Policy:          game.SegmentPolicy{ForceGoalBranch: opts.ForceGoalBranch, NextSegment: nextSegment(opts.Segment)},
		LayoutPositions: opts.LayoutPositions,
		StepDelay:       opts.StepDelay,
		Navigate:        opts.Navigate,
		OnStep:          opts.OnStep,
		Log:             log,
	})

	ch := channel.Dial(ctx, opts.ChannelURL, id.Token, channel.Handlers{
		DiceResult:   sess.HandleDiceResult,
		PlayerMoved:  sess.HandlePlayerMoved,
		MoneyChanged: sess.HandleMoneyChanged,
		GambleResult: func(res protocol.GambleResult) {
			sess.HandleGambleResult(res.UserID, res.NewMoney)
		},
		PlayerFinished: func(userID string, money int) {
			log.Info("player finished", zap.String("userID", userID), zap.Int("money", money))
		},
		ServerError: func(message string) {
			log.Warn("server error push", zap.String("message", message))
		},
	}, log)

	p := &PageSession{Session: sess, API: apiClient, Store: st, ch: ch, log: log}
	p.bindSender()
	return p, nil
}

// bindSender points the session's outbound path at the channel. Requests
// issued before the handshake completes queue inside the channel and flush
// on open.
func (p *PageSession) bindSender() {
	p.Session.SetSender(p.ch)
}

// Channel exposes the connection state for the page's indicator.
func (p *PageSession) Channel() *channel.Client { return p.ch }

// Close tears the page down: stop the stepper, close the channel. Safe to
// call more than once. This is also the sign-out path.
func (p *PageSession) Close() error {
	p.Session.Shutdown()
	return p.ch.Close()
}

// nextSegment is the board progression. Segment names are page1..pageN; the
// goal of the last known page wraps to the ranking page.
func nextSegment(cur string) string {
	switch cur {
	case "page1":
		return "page2"
	case "page2":
		return "page3"
	case "page3":
		return "ranking"
	default:
		return "ranking"
	}
}
