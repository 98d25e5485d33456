package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBadPayload = errors.New("catalog payload is neither an array nor a wrapper")

// Catalog is the normalized per-page catalog. TotalTiles may be smaller than
// the visual layout; callers clamp against it. A zero-value Catalog behaves
// as empty, which is the degraded state after a fetch failure.
type Catalog struct {
	TotalTiles int
	Tiles      []Tile

	byID map[int]Tile
}

// wrapper is the legacy per-page shape, events keyed by local index 1..N.
type wrapper struct {
	TotalTiles int             `json:"totalTiles"`
	Events     json.RawMessage `json:"events"`
}

// Parse accepts either a bare JSON array of tiles or the {totalTiles, events}
// wrapper. When the wrapper omits totalTiles it is derived from the item
// count. Items without an id are keyed by their 1-based position.
func Parse(data []byte) (Catalog, error) {
	data = trimSpace(data)
	if len(data) == 0 {
		return Catalog{}, fmt.Errorf("%w: empty body", ErrBadPayload)
	}

	var (
		items []Tile
		total int
	)
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return Catalog{}, fmt.Errorf("parse tile array: %w", err)
		}
		total = len(items)
	case '{':
		var w wrapper
		if err := json.Unmarshal(data, &w); err != nil {
			return Catalog{}, fmt.Errorf("parse wrapper: %w", err)
		}
		if len(w.Events) == 0 {
			return Catalog{}, fmt.Errorf("%w: wrapper without events", ErrBadPayload)
		}
		if err := json.Unmarshal(w.Events, &items); err != nil {
			return Catalog{}, fmt.Errorf("parse wrapped events: %w", err)
		}
		total = w.TotalTiles
		if total == 0 {
			total = len(items)
		}
	default:
		return Catalog{}, ErrBadPayload
	}

	byID := make(map[int]Tile, len(items))
	for i := range items {
		if items[i].ID == 0 {
			items[i].ID = i + 1
		}
		if items[i].Effect == nil {
			items[i].Effect = NoEffect{}
		}
		byID[items[i].ID] = items[i]
	}

	return Catalog{TotalTiles: total, Tiles: items, byID: byID}, nil
}

// Lookup returns the tile for an id. On an empty/degraded catalog it simply
// reports not-found.
func (c Catalog) Lookup(id int) (Tile, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c Catalog) Len() int { return len(c.Tiles) }

func trimSpace(data []byte) []byte {
	start := 0
	for start < len(data) {
		switch data[start] {
		case ' ', '\t', '\n', '\r':
			start++
		default:
			return data[start:]
		}
	}
	return nil
}
