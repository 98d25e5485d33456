// Package protocol defines the JSON frame types exchanged with the game
// backend over the real-time channel. Every frame is a {type, payload}
// envelope; the set of types on each direction is closed.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

// Server -> client.
const (
	TypeDiceResult           MessageType = "DICE_RESULT"
	TypePlayerMoved          MessageType = "PLAYER_MOVED"
	TypeMoneyChanged         MessageType = "MONEY_CHANGED"
	TypeBranchChoiceRequired MessageType = "BRANCH_CHOICE_REQUIRED"
	TypeQuizRequired         MessageType = "QUIZ_REQUIRED"
	TypeGambleRequired       MessageType = "GAMBLE_REQUIRED"
	TypeGambleResult         MessageType = "GAMBLE_RESULT"
	TypePlayerFinished       MessageType = "PLAYER_FINISHED"
	TypePlayerStatusChanged  MessageType = "PLAYER_STATUS_CHANGED"
	TypeError                MessageType = "ERROR"
)

// Client -> server.
const (
	TypeRollDice     MessageType = "ROLL_DICE"
	TypeSubmitChoice MessageType = "SUBMIT_CHOICE"
	TypeSubmitQuiz   MessageType = "SUBMIT_QUIZ"
	TypeSubmitGamble MessageType = "SUBMIT_GAMBLE"
)

var ErrUnknownType = errors.New("unknown message type")

type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is the closed set of server pushes. Decode returns exactly one of
// the payload structs below.
type Inbound interface{ isInbound() }

type DiceResult struct {
	UserID     string `json:"userID"`
	DiceResult int    `json:"diceResult"`
}

type PlayerMoved struct {
	UserID      string `json:"userID"`
	NewPosition int    `json:"newPosition"`
}

type MoneyChanged struct {
	UserID   string `json:"userID"`
	NewMoney int    `json:"newMoney"`
}

type BranchChoiceRequired struct {
	TileID  int   `json:"tileID"`
	Options []int `json:"options"`
}

type QuizData struct {
	QuizID   int      `json:"quizID"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type QuizRequired struct {
	TileID   int      `json:"tileID"`
	QuizData QuizData `json:"quizData"`
}

type GambleRequired struct {
	TileID         int `json:"tileID"`
	ReferenceValue int `json:"referenceValue"`
}

type GambleResult struct {
	UserID     string `json:"userID"`
	DiceResult int    `json:"diceResult"`
	Choice     string `json:"choice"`
	Won        bool   `json:"won"`
	Amount     int    `json:"amount"`
	NewMoney   int    `json:"newMoney"`
}

type PlayerFinished struct {
	UserID string `json:"userID"`
	Money  int    `json:"money"`
}

type PlayerStatusChanged struct {
	UserID string `json:"userID"`
	Status string `json:"status"`
	Value  int    `json:"value"`
}

type ServerError struct {
	Message string `json:"message"`
}

func (DiceResult) isInbound()           {}
func (PlayerMoved) isInbound()          {}
func (MoneyChanged) isInbound()         {}
func (BranchChoiceRequired) isInbound() {}
func (QuizRequired) isInbound()         {}
func (GambleRequired) isInbound()       {}
func (GambleResult) isInbound()         {}
func (PlayerFinished) isInbound()       {}
func (PlayerStatusChanged) isInbound()  {}
func (ServerError) isInbound()          {}

// Decode parses a raw frame into its typed inbound message. A frame whose
// type is not in the closed set returns ErrUnknownType; the caller logs and
// drops it rather than failing the connection.
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Inbound
	switch env.Type {
	case TypeDiceResult:
		msg = &DiceResult{}
	case TypePlayerMoved:
		msg = &PlayerMoved{}
	case TypeMoneyChanged:
		msg = &MoneyChanged{}
	case TypeBranchChoiceRequired:
		msg = &BranchChoiceRequired{}
	case TypeQuizRequired:
		msg = &QuizRequired{}
	case TypeGambleRequired:
		msg = &GambleRequired{}
	case TypeGambleResult:
		msg = &GambleResult{}
	case TypePlayerFinished:
		msg = &PlayerFinished{}
	case TypePlayerStatusChanged:
		msg = &PlayerStatusChanged{}
	case TypeError:
		msg = &ServerError{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return deref(msg), nil
}

// deref hands handlers values, not pointers, so nobody holds onto shared
// decode state.
func deref(msg Inbound) Inbound {
	switch m := msg.(type) {
	case *DiceResult:
		return *m
	case *PlayerMoved:
		return *m
	case *MoneyChanged:
		return *m
	case *BranchChoiceRequired:
		return *m
	case *QuizRequired:
		return *m
	case *GambleRequired:
		return *m
	case *GambleResult:
		return *m
	case *PlayerFinished:
		return *m
	case *PlayerStatusChanged:
		return *m
	case *ServerError:
		return *m
	}
	return msg
}
