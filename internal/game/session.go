// Package game owns the client-side turn progression: request a dice roll,
// animate the advance one tile at a time, apply the landed tile's effect,
// show its modal, and hand the turn back. It also reconciles server pushes
// against the locally predicted state.
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shii-park/metasugo-client/internal/catalog"
	"github.com/shii-park/metasugo-client/internal/presentation"
	"github.com/shii-park/metasugo-client/internal/store"
)

type Phase string

const (
	PhaseReady        Phase = "ready"
	PhaseAwaitingDice Phase = "awaiting_dice"
	PhaseAnimating    Phase = "animating"
	PhaseEventActive  Phase = "event_active"
	PhaseGoalPending  Phase = "goal_pending"
)

var (
	ErrBusy       = errors.New("turn already in progress")
	ErrNoIdentity = errors.New("identity not established")
	ErrNoEvent    = errors.New("no event modal active")
)

// Sender is what the session needs from the real-time channel.
type Sender interface {
	RollDice() error
	SubmitChoice(tileID int) error
	SubmitQuiz(option int) error
}

// DiceSource is the REST fallback used when the channel cannot carry the
// roll request.
type DiceSource interface {
	FetchDice(ctx context.Context) (int, error)
}

// SegmentPolicy is per-board-segment behavior. ForceGoalBranch routes the
// goal cell through a branch-style confirmation regardless of the cell's
// declared kind; goal pages on some segments want their own modal instead.
type SegmentPolicy struct {
	ForceGoalBranch bool
	NextSegment     string
}

// ActiveEvent is the at-most-one modal currently showing.
type ActiveEvent struct {
	TileID int
	Key    presentation.Key
	Modal  presentation.Modal
	Detail string
}

type Config struct {
	UserID   string
	Catalog  catalog.Catalog
	Store    *store.Store
	Sender   Sender
	Dice     DiceSource
	Registry presentation.Registry
	Policy   SegmentPolicy

	// LayoutPositions is the visual layout's cell count. The playable total
	// is min(LayoutPositions, catalog total) so a short catalog never lets
	// the player walk off the data.
	LayoutPositions int

	StepDelay time.Duration
	// Navigate fires once when the goal modal closes.
	Navigate func(next string)
	// OnStep fires after every animated step, for rendering.
	OnStep func(step int)

	Log *zap.Logger
}

type Session struct {
	cfg   Config
	log   *zap.Logger
	total int

	mu         sync.Mutex
	phase      Phase
	step       int
	active     *ActiveEvent
	goal       bool
	navigated  bool
	cancelled  bool
	generation int // invalidates in-flight steppers
	lastErr    string
}

func NewSession(cfg Config) *Session {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = presentation.DefaultRegistry()
	}

	total := cfg.Catalog.TotalTiles
	if cfg.LayoutPositions > 0 && cfg.LayoutPositions < total {
		total = cfg.LayoutPositions
	}

	return &Session{
		cfg:   cfg,
		log:   cfg.Log,
		total: total,
		phase: PhaseReady,
	}
}

// Advance is the movement rule: forward by the dice value, clamped at the
// final cell, never backward.
func Advance(pos, dice, total int) int {
	next := pos + dice
	if next > total {
		return total
	}
	return next
}

// SetSender late-binds the outbound channel; the page wires the channel
// after constructing the session because the handlers point back here.
func (s *Session) SetSender(snd Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Sender = snd
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) TotalTiles() int { return s.total }

// ActiveEvent returns the modal currently showing, nil when none.
func (s *Session) ActiveEvent() *ActiveEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	ev := *s.active
	return &ev
}

// LastError is the inline, user-visible error from the most recent failed
// action. Cleared by the next successful roll.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// RollDice requests a roll. Guarded: no concurrent roll, no roll while
// animating or while a modal is up, and identity must be established.
// The roll goes out over the channel; without a channel the REST dice
// source answers, and failing that a local RNG keeps the game moving.
func (s *Session) RollDice(ctx context.Context) error {
	s.mu.Lock()
	if s.cfg.UserID == "" {
		s.mu.Unlock()
		return ErrNoIdentity
	}
	if s.phase != PhaseReady {
		s.mu.Unlock()
		return ErrBusy
	}
	s.phase = PhaseAwaitingDice
	s.lastErr = ""
	sender := s.cfg.Sender
	s.mu.Unlock()

	if sender != nil {
		err := sender.RollDice()
		if err == nil {
			return nil // server will push DICE_RESULT
		}
		s.log.Warn("roll over channel failed, falling back", zap.Error(err))
	}

	if s.cfg.Dice != nil {
		v, err := s.cfg.Dice.FetchDice(ctx)
		if err != nil {
			s.mu.Lock()
			s.phase = PhaseReady
			s.lastErr = "サイコロの取得に失敗しました"
			s.mu.Unlock()
			s.log.Warn("dice fetch failed", zap.Error(err))
			return err
		}
		s.beginMove(v)
		return nil
	}

	s.beginMove(rand.Intn(6) + 1)
	return nil
}

// HandleDiceResult is the channel handler for DICE_RESULT pushes.
func (s *Session) HandleDiceResult(userID string, value int) {
	if userID != s.cfg.UserID {
		return
	}
	s.mu.Lock()
	if s.phase != PhaseAwaitingDice {
		// Redundant or out-of-order push; the turn is not waiting on it.
		s.mu.Unlock()
		s.log.Debug("discarding dice push", zap.String("phase", string(s.phase)))
		return
	}
	s.mu.Unlock()
	s.beginMove(clampDice(value))
}

// HandlePlayerMoved reconciles the authoritative position. While an
// animation is running the local stepper wins; otherwise snap to the server.
func (s *Session) HandlePlayerMoved(userID string, newPosition int) {
	if userID != s.cfg.UserID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseAnimating {
		return
	}
	if newPosition >= 0 && newPosition <= s.total {
		s.step = newPosition
	}
}

// HandleMoneyChanged applies a money push only while an event modal is
// active. Pushes outside a modal are noise from the roll-dice path itself
// (known backend quirk) and are discarded for parity with observed behavior.
func (s *Session) HandleMoneyChanged(userID string, newMoney int) {
	if userID != s.cfg.UserID {
		return
	}
	s.mu.Lock()
	modalUp := s.active != nil
	s.mu.Unlock()
	if !modalUp {
		s.log.Debug("discarding money push with no modal active", zap.Int("newMoney", newMoney))
		return
	}
	delta := newMoney - s.cfg.Store.Money()
	s.cfg.Store.SetMoney(newMoney)
	s.cfg.Store.SetMoneyChange(delta)
}

// HandleGambleResult follows the same modal-gated policy as money pushes.
func (s *Session) HandleGambleResult(userID string, newMoney int) {
	s.HandleMoneyChanged(userID, newMoney)
}

// ChooseBranch submits the selected next tile for a branch event.
func (s *Session) ChooseBranch(tileID int) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return ErrNoEvent
	}
	sender := s.cfg.Sender
	s.mu.Unlock()
	if sender != nil {
		if err := sender.SubmitChoice(tileID); err != nil {
			return err
		}
	}
	s.cfg.Store.IncrementBranch()
	return nil
}

// AnswerQuiz submits the selected option for a quiz event.
func (s *Session) AnswerQuiz(option int) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return ErrNoEvent
	}
	sender := s.cfg.Sender
	s.mu.Unlock()
	if sender != nil {
		if err := sender.SubmitQuiz(option); err != nil {
			return err
		}
	}
	s.cfg.Store.IncrementBranch()
	return nil
}

// CloseModal dismisses the active event. It always clears the pending
// money-change record; on the goal cell it fires navigation exactly once no
// matter how many times the close handler runs.
func (s *Session) CloseModal() {
	s.mu.Lock()
	if s.phase != PhaseEventActive && s.phase != PhaseGoalPending {
		s.mu.Unlock()
		return
	}
	s.active = nil
	navigate := false
	if s.goal {
		if !s.navigated {
			s.navigated = true
			navigate = true
		}
	} else {
		s.phase = PhaseReady
	}
	s.mu.Unlock()

	s.cfg.Store.ClearMoneyChange()

	if navigate {
		s.cfg.Store.SetRouting(true)
		if s.cfg.Navigate != nil {
			s.cfg.Navigate(s.cfg.Policy.NextSegment)
		}
	}
}

// Shutdown stops scheduling further animation steps. In-flight timers may
// still fire but find the session cancelled and drop their updates.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	s.generation++
}

func (s *Session) beginMove(dice int) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseAnimating
	s.generation++
	gen := s.generation
	target := Advance(s.step, dice, s.total)
	s.mu.Unlock()

	go s.runStepper(gen, target)
}

// runStepper advances one cell per tick. The generation check before every
// step makes teardown mid-animation safe: a stale stepper simply stops.
func (s *Session) runStepper(gen, target int) {
	for {
		if s.cfg.StepDelay > 0 {
			time.Sleep(s.cfg.StepDelay)
		}

		s.mu.Lock()
		if s.cancelled || s.generation != gen {
			s.mu.Unlock()
			return
		}
		if s.step >= target {
			s.mu.Unlock()
			break
		}
		s.step++
		cur := s.step
		done := cur >= target
		s.mu.Unlock()

		if s.cfg.OnStep != nil {
			s.cfg.OnStep(cur)
		}
		if done {
			break
		}
	}
	s.land(gen)
}

// land applies the tile effect exactly once, picks the modal, and opens it.
func (s *Session) land(gen int) {
	s.mu.Lock()
	if s.cancelled || s.generation != gen {
		s.mu.Unlock()
		return
	}
	pos := s.step
	reachedGoal := pos == s.total && s.total > 0
	s.mu.Unlock()

	tile, ok := s.cfg.Catalog.Lookup(pos)
	if ok {
		s.applyEffect(tile.Effect)
	}

	key := presentation.KeyOf(tile.Kind)
	if reachedGoal && s.cfg.Policy.ForceGoalBranch {
		// Segment policy: the goal cell routes through a branch-style
		// confirmation regardless of its catalog-declared kind.
		key = presentation.KeyBranch
	}

	modal, visible := s.cfg.Registry.ModalFor(key)
	detail := ""
	if visible && modal.WantsDetail {
		detail = tile.Detail
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.generation != gen {
		return
	}
	s.goal = s.goal || reachedGoal
	if !visible {
		// No modal registered for this key: no visible event. Not an error.
		if reachedGoal {
			s.phase = PhaseGoalPending
		} else {
			s.phase = PhaseReady
		}
		return
	}
	s.active = &ActiveEvent{TileID: pos, Key: key, Modal: modal, Detail: detail}
	if reachedGoal {
		s.phase = PhaseGoalPending
	} else {
		s.phase = PhaseEventActive
	}
}

// applyEffect is the local prediction applied immediately after movement,
// before the modal opens. It re-reads the store's money at the last moment
// so a concurrent confirmed push is not overwritten with stale math.
func (s *Session) applyEffect(eff catalog.Effect) {
	switch e := eff.(type) {
	case catalog.MoneyEffect:
		money := s.cfg.Store.Money()
		s.cfg.Store.SetMoney(money + e.Amount)
		s.cfg.Store.SetMoneyChange(e.Amount)
	case catalog.NeighborEffect, catalog.OverallEffect, catalog.QuizEffect,
		catalog.BranchEffect, catalog.GambleEffect, catalog.NoEffect, nil:
		// Resolved by the backend (or by the modal's own submission); the
		// landing itself moves no money.
	}
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
