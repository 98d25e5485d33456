package presentation

import (
	"testing"

	"github.com/shii-park/metasugo-client/internal/catalog"
)

func TestKeyOfCoversEveryKind(t *testing.T) {
	cases := []struct {
		kind catalog.Kind
		want Key
	}{
		{catalog.KindProfit, KeyProfit},
		{catalog.KindLoss, KeyLoss},
		{catalog.KindQuiz, KeyQuiz},
		{catalog.KindBranch, KeyBranch},
		{catalog.KindOverall, KeyOverall},
		{catalog.KindNeighbor, KeyNeighbor},
		{catalog.KindGamble, KeyGamble},
		{catalog.KindNormal, KeyNormal},
		{catalog.KindGoal, KeyGoal},
	}

	seen := map[Key]catalog.Kind{}
	for _, tc := range cases {
		got := KeyOf(tc.kind)
		if got != tc.want {
			t.Fatalf("KeyOf(%q): got %q, want %q", tc.kind, got, tc.want)
		}
		if prev, dup := seen[got]; dup {
			t.Fatalf("key %q produced by both %q and %q", got, prev, tc.kind)
		}
		seen[got] = tc.kind
	}
}

func TestKeyOfUnknownKindIsNone(t *testing.T) {
	// "global" is the classic typo for "overall": it must fall through to no
	// modal, not crash and not show the wrong one.
	for _, kind := range []catalog.Kind{"", "global", "teleport"} {
		if got := KeyOf(kind); got != KeyNone {
			t.Fatalf("KeyOf(%q): got %q, want KeyNone", kind, got)
		}
	}
}

func TestDefaultRegistryIsExhaustive(t *testing.T) {
	if missing := DefaultRegistry().MissingModals(); len(missing) != 0 {
		t.Fatalf("registry missing modals for %v", missing)
	}
}

func TestModalForNoneAndMissing(t *testing.T) {
	reg := DefaultRegistry()
	delete(reg, KeyGamble)

	if _, ok := reg.ModalFor(KeyNone); ok {
		t.Fatalf("KeyNone must resolve to no modal")
	}
	if _, ok := reg.ModalFor(KeyGamble); ok {
		t.Fatalf("removed key must resolve to no modal")
	}
	if m, ok := reg.ModalFor(KeyNeighbor); !ok || !m.WantsDetail {
		t.Fatalf("neighbor modal should carry detail, got %#v ok=%v", m, ok)
	}
}
