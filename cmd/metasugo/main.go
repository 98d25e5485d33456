// metasugo runs one board session against a backend from the terminal:
// fetch a token, open the channel, roll until the goal, print what the
// modals would show.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shii-park/metasugo-client/internal/client"
	"github.com/shii-park/metasugo-client/internal/config"
	"github.com/shii-park/metasugo-client/internal/game"
	"github.com/shii-park/metasugo-client/internal/identity"
	"github.com/shii-park/metasugo-client/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := zap.NewNop()
	if cfg.Debug {
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	provider := buildProvider(cfg)
	st := store.New()
	st.SetMoney(1000)

	st.Subscribe(func(snap store.Snapshot) {
		if snap.MoneyChange != nil {
			fmt.Printf("  money %+d -> %d\n", snap.MoneyChange.Delta, snap.Money)
		}
	})

	routed := make(chan string, 1)
	page, err := client.Open(ctx, client.Options{
		APIBaseURL:      cfg.APIBaseURL,
		ChannelURL:      cfg.ChannelURL,
		Segment:         cfg.Segment,
		LayoutPositions: cfg.LayoutPositions,
		StepDelay:       cfg.StepDelay,
		ForceGoalBranch: cfg.ForceGoalBranch,
		Provider:        provider,
		Store:           st,
		Navigate:        func(next string) { routed <- next },
		OnStep:          func(step int) { fmt.Printf("  step %d\n", step) },
		Log:             log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = page.Close() }()

	sess := page.Session
	fmt.Printf("board %q, %d tiles\n", cfg.Segment, sess.TotalTiles())

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-routed:
			fmt.Printf("goal reached, next segment: %s\n", next)
			return nil
		case <-page.Channel().Done():
			if err := page.Channel().Err(); err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return nil
		case <-ticker.C:
		}

		switch sess.Phase() {
		case game.PhaseReady:
			if msg := sess.LastError(); msg != "" {
				fmt.Println("  !", msg)
			}
			fmt.Println("rolling...")
			if err := sess.RollDice(ctx); err != nil {
				log.Warn("roll failed", zap.Error(err))
			}
		case game.PhaseEventActive, game.PhaseGoalPending:
			if ev := sess.ActiveEvent(); ev != nil {
				fmt.Printf("  [%s] %s", ev.Key, ev.Modal.Name)
				if ev.Detail != "" {
					fmt.Printf(": %s", ev.Detail)
				}
				fmt.Println()
			}
			sess.CloseModal()
		}
	}
}

// buildProvider uses a fixed token when configured, otherwise fetches one
// from the backend's token endpoint and refreshes it as it expires.
func buildProvider(cfg config.Config) identity.Provider {
	if cfg.Token != "" {
		return identity.Static{ID: identity.Identity{UserID: cfg.UserID, Token: cfg.Token}}
	}
	return identity.NewRefreshing(func(ctx context.Context) (identity.Identity, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/token", nil)
		if err != nil {
			return identity.Identity{}, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return identity.Identity{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return identity.Identity{}, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		}
		var body struct {
			Token  string `json:"token"`
			UserID string `json:"userID"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return identity.Identity{}, err
		}
		return identity.Identity{UserID: body.UserID, Token: body.Token}, nil
	})
}
