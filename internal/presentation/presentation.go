// Package presentation maps tile-event kinds to the key that picks the
// modal (and its styling) shown when a player lands. The mapping is pure;
// a kind outside the enumeration means no modal, never an error.
package presentation

import "github.com/shii-park/metasugo-client/internal/catalog"

type Key string

const (
	KeyProfit   Key = "profit"
	KeyLoss     Key = "loss"
	KeyQuiz     Key = "quiz"
	KeyBranch   Key = "branch"
	KeyOverall  Key = "overall"
	KeyNeighbor Key = "neighbor"
	KeyGamble   Key = "gamble"
	KeyNormal   Key = "normal"
	KeyGoal     Key = "goal"

	// KeyNone maps to no modal. Unknown and future kinds land here so a new
	// backend kind degrades to "nothing happens" instead of a crash.
	KeyNone Key = ""
)

// KeyOf is total over catalog.Kind. Anything not in the enumeration,
// including the empty kind, yields KeyNone.
func KeyOf(kind catalog.Kind) Key {
	switch kind {
	case catalog.KindProfit:
		return KeyProfit
	case catalog.KindLoss:
		return KeyLoss
	case catalog.KindQuiz:
		return KeyQuiz
	case catalog.KindBranch:
		return KeyBranch
	case catalog.KindOverall:
		return KeyOverall
	case catalog.KindNeighbor:
		return KeyNeighbor
	case catalog.KindGamble:
		return KeyGamble
	case catalog.KindNormal:
		return KeyNormal
	case catalog.KindGoal:
		return KeyGoal
	default:
		return KeyNone
	}
}

// visibleKeys is every key KeyOf can produce besides KeyNone. The registry
// exhaustiveness test pins itself against this list.
var visibleKeys = []Key{
	KeyProfit, KeyLoss, KeyQuiz, KeyBranch, KeyOverall,
	KeyNeighbor, KeyGamble, KeyNormal, KeyGoal,
}

func VisibleKeys() []Key {
	out := make([]Key, len(visibleKeys))
	copy(out, visibleKeys)
	return out
}

// Modal describes the overlay rendered for an active event.
type Modal struct {
	Name string
	// Color is the tile/category styling key used by the layout layer.
	Color string
	// WantsDetail marks modals that render the tile's free-text detail.
	// Only neighbor and overall events carry text into the modal.
	WantsDetail bool
}

type Registry map[Key]Modal

func DefaultRegistry() Registry {
	return Registry{
		KeyProfit:   {Name: "ProfitModal", Color: "yellow"},
		KeyLoss:     {Name: "LossModal", Color: "purple"},
		KeyQuiz:     {Name: "QuizModal", Color: "blue"},
		KeyBranch:   {Name: "BranchModal", Color: "green"},
		KeyOverall:  {Name: "OverallModal", Color: "red", WantsDetail: true},
		KeyNeighbor: {Name: "NeighborModal", Color: "orange", WantsDetail: true},
		KeyGamble:   {Name: "GambleModal", Color: "black"},
		KeyNormal:   {Name: "NormalModal", Color: "white"},
		KeyGoal:     {Name: "GoalModal", Color: "gold"},
	}
}

// ModalFor resolves a key. A missing entry (or KeyNone) means no visible
// event; the caller skips the modal rather than treating it as an error.
func (r Registry) ModalFor(key Key) (Modal, bool) {
	if key == KeyNone {
		return Modal{}, false
	}
	m, ok := r[key]
	return m, ok
}

// MissingModals reports forward-mapper keys the registry does not cover.
// A registry gap is legal at runtime (silent no-op) but the test suite pins
// this to empty so a typo'd kind shows up in CI instead of as a blank modal.
func (r Registry) MissingModals() []Key {
	var missing []Key
	for _, k := range visibleKeys {
		if _, ok := r[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
