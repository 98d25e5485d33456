package protocol

import "encoding/json"

type GambleChoice string

const (
	GambleHigh GambleChoice = "High"
	GambleLow  GambleChoice = "Low"
)

// Outbound is the closed set of client requests.
type Outbound interface{ messageType() MessageType }

type RollDice struct{}

type SubmitChoice struct {
	Selection int `json:"selection"`
}

type SubmitQuiz struct {
	Selection int `json:"selection"`
}

type SubmitGamble struct {
	Bet    int          `json:"bet"`
	Choice GambleChoice `json:"choice"`
}

func (RollDice) messageType() MessageType     { return TypeRollDice }
func (SubmitChoice) messageType() MessageType { return TypeSubmitChoice }
func (SubmitQuiz) messageType() MessageType   { return TypeSubmitQuiz }
func (SubmitGamble) messageType() MessageType { return TypeSubmitGamble }

// Encode wraps an outbound request in its envelope. ROLL_DICE carries an
// empty payload object to match what the backend expects.
func Encode(msg Outbound) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msg.messageType(), Payload: payload})
}
