package store

import "testing"

func TestMutationsAndSnapshot(t *testing.T) {
	s := New()

	s.SetMoney(1500)
	s.SetMoneyChange(500)
	s.IncrementBranch()
	s.SetRouting(true)

	snap := s.Get()
	if snap.Money != 1500 {
		t.Fatalf("money: got %d, want 1500", snap.Money)
	}
	if snap.MoneyChange == nil || snap.MoneyChange.Delta != 500 {
		t.Fatalf("moneyChange: got %#v", snap.MoneyChange)
	}
	if snap.BranchCount != 1 || !snap.IsRouting {
		t.Fatalf("got %#v", snap)
	}

	s.ClearMoneyChange()
	if s.Get().MoneyChange != nil {
		t.Fatalf("moneyChange not cleared")
	}
}

func TestNegativeMoneyIsRepresentable(t *testing.T) {
	// Deliberate: no zero clamp. The backend owns the balance; the client
	// displays whatever it is told, debt included.
	s := New()
	s.SetMoney(-200)
	if got := s.Money(); got != -200 {
		t.Fatalf("got %d, want -200", got)
	}
}

func TestSubscribePublishesOnMutation(t *testing.T) {
	s := New()

	var got []int
	unsub := s.Subscribe(func(snap Snapshot) { got = append(got, snap.Money) })

	s.SetMoney(100)
	s.SetMoney(250)
	unsub()
	s.SetMoney(999)

	if len(got) != 2 || got[0] != 100 || got[1] != 250 {
		t.Fatalf("publishes: got %v, want [100 250]", got)
	}
}

func TestSubscriberMayReadStore(t *testing.T) {
	s := New()
	var seen int
	s.Subscribe(func(Snapshot) { seen = s.Money() })
	s.SetMoney(42)
	if seen != 42 {
		t.Fatalf("subscriber read %d, want 42", seen)
	}
}

func TestLastWriteWins(t *testing.T) {
	s := New()
	s.SetMoneyChange(100)
	s.SetMoneyChange(-40)
	if d := s.Get().MoneyChange.Delta; d != -40 {
		t.Fatalf("delta: got %d, want -40", d)
	}
}
