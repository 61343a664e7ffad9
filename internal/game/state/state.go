// Package state holds the value types describing one match. Everything here
// is plain data with deep Clone methods; rule enforcement lives elsewhere.
package state

import (
	"fmt"

	"github.com/syu-y/card-tictactoe/internal/game/board"
	"github.com/syu-y/card-tictactoe/internal/game/wincheck"
)

// Hand limits.
const (
	InitialHand = 3
	MaxHand     = 10
)

// Phase is a stage of the turn cycle.
type Phase int

const (
	PhaseDeckSelect Phase = iota
	PhaseCard
	PhasePlace
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseDeckSelect: "DECK_SELECT",
	PhaseCard:       "CARD",
	PhasePlace:      "PLACE",
	PhaseGameOver:   "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

// PendingState tells whether a multi-step card is waiting for its selection.
type PendingState string

const (
	PendingIdle              PendingState = "idle"
	PendingAwaitingSelection PendingState = "awaiting_selection"
)

// Pending tracks a multi-step card between its reveal and its selection.
// CardID and Candidates are only set while awaiting a selection.
type Pending struct {
	State      PendingState `json:"state"`
	CardID     int          `json:"cardId,omitempty"`
	Candidates []int        `json:"candidates,omitempty"`
}

// Idle returns the resting pending state.
func Idle() Pending {
	return Pending{State: PendingIdle}
}

// AwaitSelection records revealed candidates for the given card.
func AwaitSelection(cardID int, candidates []int) Pending {
	return Pending{
		State:      PendingAwaitingSelection,
		CardID:     cardID,
		Candidates: append([]int{}, candidates...),
	}
}

// Awaiting reports whether a selection is outstanding.
func (p Pending) Awaiting() bool {
	return p.State == PendingAwaitingSelection
}

// Step returns the next step number of the card in flight: 1 when idle, 2 when awaiting.
func (p Pending) Step() int {
	if p.Awaiting() {
		return 2
	}
	return 1
}

// Offers reports whether id is among the revealed candidates.
func (p Pending) Offers(id int) bool {
	for _, c := range p.Candidates {
		if c == id {
			return true
		}
	}
	return false
}

// PlayerState is one seat's cards and turn flags.
type PlayerState struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Mark               board.Mark `json:"mark"`
	Deck               []int      `json:"deck"`
	Hand               []int      `json:"hand"`
	Discard            []int      `json:"discard"`
	DeckSet            bool       `json:"deckSet"`
	SkipNextPlace      bool       `json:"skipNextPlace"`
	IgnoreCardLimit    bool       `json:"ignoreCardLimit"`
	NoMoreCardThisTurn bool       `json:"noMoreCardThisTurn"`
	Pending            Pending    `json:"pending"`
}

// Clone returns a deep copy of the player.
func (p PlayerState) Clone() PlayerState {
	out := p
	out.Deck = append([]int{}, p.Deck...)
	out.Hand = append([]int{}, p.Hand...)
	out.Discard = append([]int{}, p.Discard...)
	out.Pending.Candidates = append([]int(nil), p.Pending.Candidates...)
	return out
}

// HandFull reports whether the hand is at capacity.
func (p *PlayerState) HandFull() bool {
	return len(p.Hand) >= MaxHand
}

// Receive puts a card into the hand, or onto the discard pile when the hand is full.
// It reports whether the card reached the hand.
func (p *PlayerState) Receive(id int) bool {
	if p.HandFull() {
		p.Discard = append(p.Discard, id)
		return false
	}
	p.Hand = append(p.Hand, id)
	return true
}

// Draw moves up to n cards from the front of the deck. It returns how many
// cards left the deck.
func (p *PlayerState) Draw(n int) int {
	drawn := 0
	for drawn < n && len(p.Deck) > 0 {
		id := p.Deck[0]
		p.Deck = p.Deck[1:]
		p.Receive(id)
		drawn++
	}
	return drawn
}

// HandIndex returns the index of the first copy of id in the hand, or -1.
func (p *PlayerState) HandIndex(id int) int {
	for i, c := range p.Hand {
		if c == id {
			return i
		}
	}
	return -1
}

// DiscardFromHand moves the first copy of id from hand to discard.
func (p *PlayerState) DiscardFromHand(id int) bool {
	idx := p.HandIndex(id)
	if idx < 0 {
		return false
	}
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	p.Discard = append(p.Discard, id)
	return true
}

// TakeFromDeck removes the first copy of id from the deck. limit bounds the
// search to the top limit cards; zero or less searches the whole deck.
func (p *PlayerState) TakeFromDeck(id, limit int) bool {
	end := len(p.Deck)
	if limit > 0 && limit < end {
		end = limit
	}
	for i := 0; i < end; i++ {
		if p.Deck[i] == id {
			p.Deck = append(p.Deck[:i], p.Deck[i+1:]...)
			return true
		}
	}
	return false
}

// ResetTurnFlags clears the once-per-turn card flags.
func (p *PlayerState) ResetTurnFlags() {
	p.IgnoreCardLimit = false
	p.NoMoreCardThisTurn = false
}

// GameState is the full authoritative state of one match.
type GameState struct {
	RoomID           string         `json:"roomId"`
	Phase            Phase          `json:"phase"`
	Board            *board.Board   `json:"board"`
	Players          [2]PlayerState `json:"players"`
	CurrentPlayer    int            `json:"currentPlayer"`
	TurnCount        int            `json:"turnCount"`
	LineBreak        int            `json:"lineBreakCounter"`
	CardUsedThisTurn bool           `json:"cardUsedThisTurn"`
	Winner           string         `json:"winner,omitempty"`
	WinningLine      *wincheck.Line `json:"winningLine,omitempty"`
	Draw             bool           `json:"draw"`
}

// New creates the state of a freshly formed match.
func New(roomID string, players [2]PlayerState) *GameState {
	gs := &GameState{
		RoomID:    roomID,
		Phase:     PhaseDeckSelect,
		Board:     board.New(),
		Players:   players,
		TurnCount: 1,
	}
	for i := range gs.Players {
		p := &gs.Players[i]
		p.Mark = board.MarkForSeat(i)
		p.Deck = []int{}
		p.Hand = []int{}
		p.Discard = []int{}
		p.Pending = Idle()
	}
	return gs
}

// Clone returns a deep copy of the game state.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	out := *g
	out.Board = g.Board.Clone()
	for i := range g.Players {
		out.Players[i] = g.Players[i].Clone()
	}
	if g.WinningLine != nil {
		line := *g.WinningLine
		line.Positions = append([]board.Position(nil), g.WinningLine.Positions...)
		out.WinningLine = &line
	}
	return &out
}

// Seat returns the seat index of playerID, or -1.
func (g *GameState) Seat(playerID string) int {
	for i := range g.Players {
		if g.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// Current returns the player whose turn it is.
func (g *GameState) Current() *PlayerState {
	return &g.Players[g.CurrentPlayer]
}

// Opponent returns the seat index facing seat.
func Opponent(seat int) int {
	return 1 - seat
}
