package game

import (
	"github.com/syu-y/card-tictactoe/internal/game/state"
)

// HiddenCard stands in for a card the viewer may not see.
const HiddenCard = 0

// PlayerView returns a copy of the state as seen by playerID. The
// opponent's hand and deck are replaced by placeholders of the same length
// and their pending candidates are dropped.
func (m *Match) PlayerView(playerID string) (*state.GameState, error) {
	seat, err := m.seat(playerID)
	if err != nil {
		return nil, err
	}
	view := m.state.Clone()
	opp := &view.Players[state.Opponent(seat)]
	opp.Hand = hidden(len(opp.Hand))
	opp.Deck = hidden(len(opp.Deck))
	opp.Pending.Candidates = nil
	return view, nil
}

func hidden(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = HiddenCard
	}
	return out
}
