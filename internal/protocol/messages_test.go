package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "dice result",
			raw:  `{"type":"DICE_RESULT","payload":{"userID":"u1","diceResult":4}}`,
			want: DiceResult{UserID: "u1", DiceResult: 4},
		},
		{
			name: "player moved",
			raw:  `{"type":"PLAYER_MOVED","payload":{"userID":"u1","newPosition":7}}`,
			want: PlayerMoved{UserID: "u1", NewPosition: 7},
		},
		{
			name: "money changed",
			raw:  `{"type":"MONEY_CHANGED","payload":{"userID":"u2","newMoney":-500}}`,
			want: MoneyChanged{UserID: "u2", NewMoney: -500},
		},
		{
			name: "branch choice",
			raw:  `{"type":"BRANCH_CHOICE_REQUIRED","payload":{"tileID":9,"options":[10,14]}}`,
			want: BranchChoiceRequired{TileID: 9, Options: []int{10, 14}},
		},
		{
			name: "gamble result",
			raw:  `{"type":"GAMBLE_RESULT","payload":{"userID":"u1","diceResult":6,"choice":"High","won":true,"amount":200,"newMoney":1200}}`,
			want: GambleResult{UserID: "u1", DiceResult: 6, Choice: "High", Won: true, Amount: 200, NewMoney: 1200},
		},
		{
			name: "error with no payload field variance",
			raw:  `{"type":"ERROR","payload":{"message":"nope"}}`,
			want: ServerError{Message: "nope"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			switch want := tc.want.(type) {
			case BranchChoiceRequired:
				b, ok := got.(BranchChoiceRequired)
				if !ok || b.TileID != want.TileID || len(b.Options) != len(want.Options) {
					t.Fatalf("got %#v, want %#v", got, tc.want)
				}
			default:
				if got != tc.want {
					t.Fatalf("got %#v, want %#v", got, tc.want)
				}
			}
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"SOMETHING_NEW","payload":{}}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("want ErrUnknownType, got %v", err)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeMissingPayload(t *testing.T) {
	got, err := Decode([]byte(`{"type":"DICE_RESULT"}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != (DiceResult{}) {
		t.Fatalf("want zero DiceResult, got %#v", got)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		msg      Outbound
		wantType MessageType
	}{
		{"roll dice", RollDice{}, TypeRollDice},
		{"submit choice", SubmitChoice{Selection: 14}, TypeSubmitChoice},
		{"submit quiz", SubmitQuiz{Selection: 2}, TypeSubmitQuiz},
		{"submit gamble", SubmitGamble{Bet: 300, Choice: GambleHigh}, TypeSubmitGamble},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad envelope: %v", err)
			}
			if env.Type != tc.wantType {
				t.Fatalf("type: got %q, want %q", env.Type, tc.wantType)
			}
			if len(env.Payload) == 0 {
				t.Fatalf("payload missing")
			}
		})
	}
}
