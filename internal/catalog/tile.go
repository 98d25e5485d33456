// Package catalog models the board's tile/event catalog and normalizes the
// backend's two response shapes (bare array, or a {totalTiles, events}
// wrapper) into one keyed structure.
package catalog

import (
	"encoding/json"
	"fmt"
)

// Kind tags what landing on a tile does. The enumeration is fixed; kinds the
// backend may add later decode fine and simply map to no presentation.
type Kind string

const (
	KindProfit   Kind = "profit"
	KindLoss     Kind = "loss"
	KindQuiz     Kind = "quiz"
	KindBranch   Kind = "branch"
	KindOverall  Kind = "overall"
	KindNeighbor Kind = "neighbor"
	KindGamble   Kind = "gamble"
	KindNormal   Kind = "normal"
	KindGoal     Kind = "goal"
)

// Effect is the tagged union behind a tile's effect descriptor. The tag
// usually matches the tile's Kind but the two are carried separately on the
// wire, so consumers must switch on the effect, not the kind.
type Effect interface{ isEffect() }

// NoEffect stands in for an absent or null effect descriptor.
type NoEffect struct{}

type MoneyEffect struct {
	Amount int `json:"amount"`
}

type QuizEffect struct {
	QuizID int `json:"quizID"`
}

type BranchEffect struct {
	Routes []int `json:"routes"`
}

// NeighborEffect changes the money of players on adjacent tiles.
type NeighborEffect struct {
	Amount int `json:"amount"`
}

// OverallEffect changes the money of every player on the board.
type OverallEffect struct {
	Amount int `json:"amount"`
}

type GambleEffect struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (NoEffect) isEffect()       {}
func (MoneyEffect) isEffect()    {}
func (QuizEffect) isEffect()     {}
func (BranchEffect) isEffect()   {}
func (NeighborEffect) isEffect() {}
func (OverallEffect) isEffect()  {}
func (GambleEffect) isEffect()   {}

type Tile struct {
	ID      int    `json:"id"`
	Kind    Kind   `json:"kind"`
	Detail  string `json:"detail"`
	Effect  Effect `json:"-"`
	PrevIDs []int  `json:"prev_ids"`
	NextIDs []int  `json:"next_ids"`
}

// rawTile defers the effect blob so the rest of the tile decodes with the
// default machinery.
type rawTile struct {
	ID      int             `json:"id"`
	Kind    Kind            `json:"kind"`
	Detail  string          `json:"detail"`
	Effect  json.RawMessage `json:"effect"`
	PrevIDs []int           `json:"prev_ids"`
	NextIDs []int           `json:"next_ids"`
}

func (t *Tile) UnmarshalJSON(data []byte) error {
	var raw rawTile
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	eff, err := decodeEffect(raw.Effect)
	if err != nil {
		return err
	}
	*t = Tile{
		ID:      raw.ID,
		Kind:    raw.Kind,
		Detail:  raw.Detail,
		Effect:  eff,
		PrevIDs: raw.PrevIDs,
		NextIDs: raw.NextIDs,
	}
	return nil
}

// decodeEffect resolves the union by its "type" tag. Absent/null is NoEffect,
// never an error.
func decodeEffect(data json.RawMessage) (Effect, error) {
	if len(data) == 0 || string(data) == "null" {
		return NoEffect{}, nil
	}

	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("effect tag: %w", err)
	}

	switch tag.Type {
	case "profit", "loss", "money":
		var e MoneyEffect
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "quiz":
		var e QuizEffect
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "branch":
		var e BranchEffect
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "neighbor":
		var e NeighborEffect
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "overall":
		var e OverallEffect
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "gamble":
		var e GambleEffect
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		// Reserved/future effect tags behave like no effect.
		return NoEffect{}, nil
	}
}
