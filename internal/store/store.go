// Package store holds the per-page-session game state shared between the
// progression state machine and the event modals. It is an explicit instance
// passed to its consumers, not a package global, and it publishes a snapshot
// to subscribers on every mutation.
package store

import "sync"

// MoneyChange records the most recent unresolved delta, shown in the event
// modal and cleared when the modal closes.
type MoneyChange struct {
	Delta int
}

type Snapshot struct {
	Money       int
	MoneyChange *MoneyChange
	BranchCount int
	IsRouting   bool
}

type Store struct {
	mu    sync.Mutex
	state Snapshot

	nextSub     int
	subscribers map[int]func(Snapshot)
}

func New() *Store {
	return &Store{subscribers: make(map[int]func(Snapshot))}
}

// Subscribe registers fn and returns an unsubscribe func. fn runs on every
// mutation with the post-mutation snapshot.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Money re-reads the current total. Callers computing a derived update must
// use this immediately before the update, not a value captured earlier.
func (s *Store) Money() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Money
}

func (s *Store) SetMoney(v int) {
	s.mutate(func(st *Snapshot) { st.Money = v })
}

func (s *Store) SetMoneyChange(delta int) {
	s.mutate(func(st *Snapshot) { st.MoneyChange = &MoneyChange{Delta: delta} })
}

func (s *Store) ClearMoneyChange() {
	s.mutate(func(st *Snapshot) { st.MoneyChange = nil })
}

func (s *Store) IncrementBranch() {
	s.mutate(func(st *Snapshot) { st.BranchCount++ })
}

func (s *Store) SetRouting(v bool) {
	s.mutate(func(st *Snapshot) { st.IsRouting = v })
}

func (s *Store) mutate(f func(*Snapshot)) {
	s.mu.Lock()
	f(&s.state)
	snap := s.state
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	// Publish outside the lock so a subscriber can read or mutate the store.
	for _, fn := range subs {
		fn(snap)
	}
}
