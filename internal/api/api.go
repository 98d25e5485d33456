// Package api is the REST side of the backend: catalogs, the dice value
// endpoint, and gamble submission. The real-time pushes live in channel.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shii-park/metasugo-client/internal/catalog"
	"github.com/shii-park/metasugo-client/internal/identity"
	"github.com/shii-park/metasugo-client/internal/protocol"
)

var ErrBadStatus = errors.New("unexpected response status")

type Client struct {
	BaseURL  string
	Provider identity.Provider
	HTTP     *http.Client
	Log      *zap.Logger
}

func NewClient(baseURL string, provider identity.Provider, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:  baseURL,
		Provider: provider,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Log:      log,
	}
}

// FetchTiles loads the full tile catalog for a board page. On any failure the
// returned catalog is empty so lookups degrade instead of panicking in
// rendering code.
func (c *Client) FetchTiles(ctx context.Context) (catalog.Catalog, error) {
	body, err := c.get(ctx, "/tiles")
	if err != nil {
		return catalog.Catalog{}, err
	}
	cat, err := catalog.Parse(body)
	if err != nil {
		c.Log.Warn("tile catalog parse failed", zap.Error(err))
		return catalog.Catalog{}, err
	}
	return cat, nil
}

// FetchEvents loads the per-segment event catalog (legacy wrapped shape or a
// bare array, the parser takes either).
func (c *Client) FetchEvents(ctx context.Context, segment string) (catalog.Catalog, error) {
	body, err := c.get(ctx, "/events/"+segment)
	if err != nil {
		return catalog.Catalog{}, err
	}
	cat, err := catalog.Parse(body)
	if err != nil {
		c.Log.Warn("event catalog parse failed", zap.String("segment", segment), zap.Error(err))
		return catalog.Catalog{}, err
	}
	return cat, nil
}

// FetchDice asks the backend for a dice value. The result is clamped to
// [1,6] regardless of what the backend claims.
func (c *Client) FetchDice(ctx context.Context) (int, error) {
	body, err := c.get(ctx, "/dice")
	if err != nil {
		return 0, err
	}
	var res struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("parse dice response: %w", err)
	}
	return clampDice(res.Value), nil
}

// SubmitGamble posts a bet over REST and returns the resolved result.
func (c *Client) SubmitGamble(ctx context.Context, bet int, choice protocol.GambleChoice) (protocol.GambleResult, error) {
	reqBody, err := protocol.Encode(protocol.SubmitGamble{Bet: bet, Choice: choice})
	if err != nil {
		return protocol.GambleResult{}, err
	}
	body, err := c.post(ctx, "/gamble", reqBody)
	if err != nil {
		return protocol.GambleResult{}, err
	}
	msg, err := protocol.Decode(body)
	if err != nil {
		return protocol.GambleResult{}, fmt.Errorf("parse gamble response: %w", err)
	}
	result, ok := msg.(protocol.GambleResult)
	if !ok {
		return protocol.GambleResult{}, fmt.Errorf("gamble response carried %T", msg)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	id, err := c.Provider.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+id.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s -> %d", ErrBadStatus, method, path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func clampDice(v int) int {
	if v < 1 {
		return 1
	}
	if v > 6 {
		return 6
	}
	return v
}
