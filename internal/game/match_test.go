package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/syu-y/card-tictactoe/internal/game/board"
	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/game/effects"
	"github.com/syu-y/card-tictactoe/internal/game/state"
)

const (
	alice = "alice"
	bob   = "bob"
)

func newTestMatch(t *testing.T) *Match {
	t.Helper()
	return NewMatch("room-1",
		[2]Participant{{ID: alice, Name: "Alice"}, {ID: bob, Name: "Bob"}},
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(zaptest.NewLogger(t)),
	)
}

func startedMatch(t *testing.T) *Match {
	t.Helper()
	m := newTestMatch(t)
	require.NoError(t, m.SetDeck(alice, cards.DefaultDeck()))
	require.NoError(t, m.SetDeck(bob, cards.DefaultDeck()))
	require.NoError(t, m.StartGame())
	return m
}

// arrange edits the live state through the snapshot boundary.
func arrange(m *Match, edit func(gs *state.GameState)) {
	gs := m.Snapshot()
	edit(gs)
	m.Restore(gs)
}

func giveHand(m *Match, seat int, hand ...int) {
	arrange(m, func(gs *state.GameState) {
		gs.Players[seat].Hand = hand
	})
}

func checksum(t *testing.T, m *Match) string {
	t.Helper()
	sum, err := m.ComputeChecksum()
	require.NoError(t, err)
	return sum.Hash
}

func at(r, c int) board.Position { return board.Position{Row: r, Col: c} }

func TestStartGame(t *testing.T) {
	m := startedMatch(t)
	gs := m.Snapshot()

	assert.Equal(t, state.PhaseCard, gs.Phase)
	assert.Equal(t, 0, gs.CurrentPlayer)
	assert.Equal(t, 1, gs.TurnCount)
	assert.Equal(t, alice, m.CurrentPlayerID())
	for _, p := range gs.Players {
		assert.Len(t, p.Hand, state.InitialHand)
		assert.Len(t, p.Deck, cards.DeckSize-state.InitialHand)
		assert.Empty(t, p.Discard)
	}
}

func TestSetDeckShufflesAllCards(t *testing.T) {
	m := newTestMatch(t)
	deck := cards.DefaultDeck()
	require.NoError(t, m.SetDeck(alice, deck))

	gs := m.Snapshot()
	assert.ElementsMatch(t, deck, gs.Players[0].Deck)
	assert.True(t, gs.Players[0].DeckSet)
	assert.False(t, m.DecksReady())
	assert.Equal(t, cards.DefaultDeck(), deck, "caller's slice is not modified")
}

func TestSetDeckRejections(t *testing.T) {
	m := newTestMatch(t)

	err := m.SetDeck("carol", cards.DefaultDeck())
	assert.Equal(t, CodePlayerNotFound, CodeOf(err))

	bad := cards.DefaultDeck()
	bad[1] = cards.Expand
	bad[2] = cards.Expand
	err = m.SetDeck(alice, bad)
	assert.Equal(t, CodeInvalidDeck, CodeOf(err))

	err = m.StartGame()
	assert.Equal(t, CodeDecksNotReady, CodeOf(err))

	require.NoError(t, m.SetDeck(alice, cards.DefaultDeck()))
	require.NoError(t, m.SetDeck(bob, cards.DefaultDeck()))
	require.NoError(t, m.StartGame())

	err = m.SetDeck(alice, cards.DefaultDeck())
	assert.Equal(t, CodeWrongPhase, CodeOf(err))
	assert.Equal(t, CodeWrongPhase, CodeOf(m.StartGame()))
}

func TestOperationsBeforeStart(t *testing.T) {
	m := newTestMatch(t)
	_, err := m.PlaceMark(alice, at(0, 0))
	assert.Equal(t, CodeWrongPhase, CodeOf(err))
	_, err = m.UseCard(alice, cards.Lock, effects.Params{})
	assert.Equal(t, CodeWrongPhase, CodeOf(err))
}

func TestTurnDiscipline(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 1, cards.Lock, cards.DrawOne)
	before := checksum(t, m)

	_, err := m.UseCard(bob, cards.DrawOne, effects.Params{})
	assert.Equal(t, CodeNotYourTurn, CodeOf(err))
	assert.Equal(t, CodeNotYourTurn, CodeOf(m.SkipCardPhase(bob)))
	_, err = m.PlaceMark(bob, at(0, 0))
	assert.Equal(t, CodeNotYourTurn, CodeOf(err))
	assert.Equal(t, before, checksum(t, m))

	require.NoError(t, m.SkipCardPhase(alice))
	_, err = m.PlaceMark(bob, at(0, 0))
	assert.Equal(t, CodeNotYourTurn, CodeOf(err))
	_, err = m.UseCard(alice, cards.DrawOne, effects.Params{})
	assert.Equal(t, CodeWrongPhase, CodeOf(err))
}

func TestPlaceMarkEndsTurn(t *testing.T) {
	m := startedMatch(t)
	require.NoError(t, m.SkipCardPhase(alice))
	res, err := m.PlaceMark(alice, at(1, 1))
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.False(t, res.Over)

	gs := m.Snapshot()
	assert.Equal(t, board.MarkO, gs.Board.Cells[1][1].Mark)
	assert.Equal(t, 1, gs.CurrentPlayer)
	assert.Equal(t, 2, gs.TurnCount)
	assert.Equal(t, state.PhaseCard, gs.Phase)
	assert.Len(t, gs.Players[1].Hand, state.InitialHand+1, "next player draws one")
	assert.Len(t, gs.Players[0].Hand, state.InitialHand)
}

func TestInvalidPlacementKeepsState(t *testing.T) {
	m := startedMatch(t)
	require.NoError(t, m.SkipCardPhase(alice))
	before := checksum(t, m)

	_, err := m.PlaceMark(alice, at(5, 5))
	assert.Equal(t, CodeInvalidMove, CodeOf(err))
	assert.ErrorIs(t, err, board.ErrOutOfRange)
	assert.Equal(t, before, checksum(t, m))
}

func TestLockScenario(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.Lock)

	_, err := m.UseCard(alice, cards.Lock, effects.Params{Position: &board.Position{Row: 0, Col: 1}})
	require.NoError(t, err)
	gs := m.Snapshot()
	assert.Equal(t, 2, gs.Board.Cells[0][1].Lock)
	assert.Equal(t, state.PhasePlace, gs.Phase)
	assert.Equal(t, []int{cards.Lock}, gs.Players[0].Discard)

	_, err = m.PlaceMark(alice, at(0, 1))
	assert.ErrorIs(t, err, board.ErrCellLocked)
	_, err = m.PlaceMark(alice, at(2, 2))
	require.NoError(t, err)

	require.NoError(t, m.SkipCardPhase(bob))
	_, err = m.PlaceMark(bob, at(0, 1))
	assert.ErrorIs(t, err, board.ErrCellLocked)
	_, err = m.PlaceMark(bob, at(2, 0))
	require.NoError(t, err)

	assert.Equal(t, 0, m.Snapshot().Board.Cells[0][1].Lock)
	require.NoError(t, m.SkipCardPhase(alice))
	_, err = m.PlaceMark(alice, at(0, 1))
	require.NoError(t, err)
}

func TestForcedPassScenario(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.ForcedPass)

	_, err := m.UseCard(alice, cards.ForcedPass, effects.Params{})
	require.NoError(t, err)
	_, err = m.PlaceMark(alice, at(0, 0))
	require.NoError(t, err)
	assert.True(t, m.Snapshot().Players[1].SkipNextPlace)

	require.NoError(t, m.SkipCardPhase(bob))
	boardBefore := m.Snapshot().Board
	res, err := m.PlaceMark(bob, at(1, 1))
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	gs := m.Snapshot()
	assert.Equal(t, boardBefore, gs.Board, "no mark is placed")
	assert.False(t, gs.Players[1].SkipNextPlace)
	assert.Equal(t, 0, gs.CurrentPlayer)
	assert.Equal(t, 3, gs.TurnCount)
	assert.Equal(t, state.PhaseCard, gs.Phase)
}

func TestCardLimit(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.DrawOne, cards.DrawOne, cards.Lock)

	_, err := m.UseCard(alice, cards.Protect, effects.Params{Position: &board.Position{}})
	assert.Equal(t, CodeCardNotInHand, CodeOf(err))

	_, err = m.UseCard(alice, cards.DrawOne, effects.Params{})
	require.NoError(t, err)
	assert.Equal(t, state.PhasePlace, m.Phase())

	// The phase has moved on; force it back to prove the per-turn limit.
	arrange(m, func(gs *state.GameState) { gs.Phase = state.PhaseCard })
	_, err = m.UseCard(alice, cards.DrawOne, effects.Params{})
	assert.Equal(t, CodeCardLimit, CodeOf(err))
}

func TestCardUseMovesToPlacePhase(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.CostReduction, cards.DrawOne)

	_, err := m.UseCard(alice, cards.CostReduction, effects.Params{})
	require.NoError(t, err)
	assert.Equal(t, state.PhasePlace, m.Phase(), "cost reduction does not hold the card phase open")
	assert.True(t, m.Snapshot().Players[0].IgnoreCardLimit)

	_, err = m.UseCard(alice, cards.DrawOne, effects.Params{})
	assert.Equal(t, CodeWrongPhase, CodeOf(err))

	_, err = m.PlaceMark(alice, at(0, 0))
	require.NoError(t, err)
	assert.False(t, m.Snapshot().Players[0].IgnoreCardLimit, "flags reset at end of turn")
}

func TestDrawTwoLeavesCardLimitUntouched(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.DrawTwo)

	_, err := m.UseCard(alice, cards.DrawTwo, effects.Params{})
	require.NoError(t, err)
	p := m.Snapshot().Players[0]
	assert.Len(t, p.Hand, 2)
	assert.False(t, p.NoMoreCardThisTurn)
	assert.Equal(t, state.PhasePlace, m.Phase())
}

func TestFailedCardIsReturnedToHand(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.Wild, cards.DrawOne)
	before := checksum(t, m)

	_, err := m.UseCard(alice, cards.Wild, effects.Params{Position: &board.Position{Row: 1, Col: 1}})
	assert.Equal(t, CodeCardFailed, CodeOf(err))
	assert.ErrorIs(t, err, board.ErrCellEmpty)
	assert.Equal(t, before, checksum(t, m))

	gs := m.Snapshot()
	assert.Equal(t, []int{cards.Wild, cards.DrawOne}, gs.Players[0].Hand)
	assert.Empty(t, gs.Players[0].Discard)
	assert.False(t, gs.CardUsedThisTurn)
}

func TestRerollThroughMatch(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		gs.Players[0].Hand = []int{7, cards.Reroll, 9}
		gs.Players[0].Deck = []int{18, 19, 4}
	})

	_, err := m.UseCard(alice, cards.Reroll, effects.Params{DiscardIndices: []int{0, 2}})
	require.NoError(t, err)

	p := m.Snapshot().Players[0]
	assert.Equal(t, []int{18, 19}, p.Hand)
	assert.Equal(t, []int{9, 7, cards.Reroll}, p.Discard)
	assert.Equal(t, []int{4}, p.Deck)
}

func TestReclaimThroughMatch(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		gs.Players[0].Hand = []int{cards.Reclaim}
		gs.Players[0].Discard = []int{cards.Lock}
	})

	_, err := m.UseCard(alice, cards.Reclaim, effects.Params{})
	require.NoError(t, err)
	p := m.Snapshot().Players[0]
	assert.Equal(t, []int{cards.Lock}, p.Hand)
	assert.Equal(t, []int{cards.Reclaim}, p.Discard)
}

func TestSearchAcrossTwoCalls(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		gs.Players[0].Hand = []int{cards.Search, cards.Lock}
		gs.Players[0].Deck = []int{1, 15, 16}
	})

	_, err := m.UseCard(alice, cards.Search, effects.Params{Category: cards.CategoryDefense})
	require.NoError(t, err)
	gs := m.Snapshot()
	assert.Equal(t, state.PhaseCard, gs.Phase)
	assert.False(t, gs.CardUsedThisTurn)
	assert.Equal(t, []int{cards.Search, cards.Lock}, gs.Players[0].Hand, "card stays in hand during reveal")

	_, err = m.UseCard(alice, cards.Lock, effects.Params{Position: &board.Position{}})
	assert.Equal(t, CodeSelectionPending, CodeOf(err))
	assert.Equal(t, CodeNotYourTurn, CodeOf(m.CancelPending(bob)))

	_, err = m.UseCard(alice, cards.Search, effects.Params{SelectedCardID: 16})
	require.NoError(t, err)
	gs = m.Snapshot()
	assert.Equal(t, state.PhasePlace, gs.Phase)
	assert.True(t, gs.CardUsedThisTurn)
	assert.Equal(t, []int{cards.Lock, 16}, gs.Players[0].Hand)
	assert.Equal(t, []int{cards.Search}, gs.Players[0].Discard)
	assert.Equal(t, []int{1, 15}, gs.Players[0].Deck)
}

func TestFailedSelectionRollsBackToBeforeReveal(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		gs.Players[0].Hand = []int{cards.Foresee}
		gs.Players[0].Deck = []int{1, 2, 3, 4}
	})
	before := checksum(t, m)

	_, err := m.UseCard(alice, cards.Foresee, effects.Params{})
	require.NoError(t, err)

	_, err = m.UseCard(alice, cards.Foresee, effects.Params{SelectedCardID: 4})
	assert.Equal(t, CodeCardFailed, CodeOf(err))
	assert.ErrorIs(t, err, effects.ErrInvalidSelection)

	assert.Equal(t, before, checksum(t, m))
	gs := m.Snapshot()
	assert.False(t, gs.Players[0].Pending.Awaiting())
	assert.Equal(t, []int{cards.Foresee}, gs.Players[0].Hand)
}

func TestCancelPending(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		gs.Players[0].Hand = []int{cards.Foresee}
		gs.Players[0].Deck = []int{1, 2, 3}
	})
	assert.Equal(t, CodeNothingPending, CodeOf(m.CancelPending(alice)))

	_, err := m.UseCard(alice, cards.Foresee, effects.Params{})
	require.NoError(t, err)
	require.NoError(t, m.CancelPending(alice))
	assert.False(t, m.Snapshot().Players[0].Pending.Awaiting())

	_, err = m.UseCard(alice, cards.Foresee, effects.Params{})
	require.NoError(t, err)
	require.NoError(t, m.SkipCardPhase(alice))
	assert.False(t, m.Snapshot().Players[0].Pending.Awaiting(), "skipping clears the selection")
}

func TestCardCanEndTheGame(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.Reverse)
	arrange(m, func(gs *state.GameState) {
		_ = gs.Board.PlaceMark(at(0, 0), board.MarkO)
		_ = gs.Board.PlaceMark(at(0, 1), board.MarkO)
		_ = gs.Board.PlaceMark(at(0, 2), board.MarkX)
	})

	_, err := m.UseCard(alice, cards.Reverse, effects.Params{Position: &board.Position{Row: 0, Col: 2}})
	require.NoError(t, err)

	assert.True(t, m.IsOver())
	winner, draw := m.Winner()
	assert.Equal(t, alice, winner)
	assert.False(t, draw)
	assert.Len(t, m.Snapshot().WinningLine.Positions, 3)

	_, err = m.PlaceMark(alice, at(1, 1))
	assert.Equal(t, CodeGameOver, CodeOf(err))
	assert.Equal(t, CodeGameOver, CodeOf(m.SkipCardPhase(alice)))
}

func TestPlacementWin(t *testing.T) {
	m := startedMatch(t)
	moves := []struct {
		player string
		pos    board.Position
	}{
		{alice, at(0, 0)}, {bob, at(1, 0)},
		{alice, at(0, 1)}, {bob, at(1, 1)},
		{alice, at(0, 2)},
	}
	var res PlaceResult
	for _, mv := range moves {
		require.NoError(t, m.SkipCardPhase(mv.player))
		var err error
		res, err = m.PlaceMark(mv.player, mv.pos)
		require.NoError(t, err)
	}
	assert.True(t, res.Over)
	winner, _ := m.Winner()
	assert.Equal(t, alice, winner)
	assert.Equal(t, state.PhaseGameOver, m.Phase())
}

func TestLineBreakVoidsNextCheck(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.LineBreak)
	arrange(m, func(gs *state.GameState) {
		_ = gs.Board.PlaceMark(at(0, 0), board.MarkO)
		_ = gs.Board.PlaceMark(at(0, 1), board.MarkO)
	})

	_, err := m.UseCard(alice, cards.LineBreak, effects.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Snapshot().LineBreak)

	res, err := m.PlaceMark(alice, at(0, 2))
	require.NoError(t, err)
	assert.False(t, res.Over, "the completed line is ignored once")

	gs := m.Snapshot()
	assert.Equal(t, 0, gs.LineBreak)
	assert.Equal(t, 1, gs.CurrentPlayer)
}

func TestDrawOnFullBoard(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		// O X O / O X X / X O . leaves (2,2) open with no line available.
		for pos, mk := range map[board.Position]board.Mark{
			at(0, 0): board.MarkO, at(0, 1): board.MarkX, at(0, 2): board.MarkO,
			at(1, 0): board.MarkO, at(1, 1): board.MarkX, at(1, 2): board.MarkX,
			at(2, 0): board.MarkX, at(2, 1): board.MarkO,
		} {
			_ = gs.Board.PlaceMark(pos, mk)
		}
	})
	require.NoError(t, m.SkipCardPhase(alice))
	res, err := m.PlaceMark(alice, at(2, 2))
	require.NoError(t, err)
	assert.True(t, res.Over)
	winner, draw := m.Winner()
	assert.Empty(t, winner)
	assert.True(t, draw)
}

func TestLineBreakFullBoardIsDraw(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		// O X X / X O O / O X . : (2,2) completes the diagonal and fills the board.
		for pos, mk := range map[board.Position]board.Mark{
			at(0, 0): board.MarkO, at(0, 1): board.MarkX, at(0, 2): board.MarkX,
			at(1, 0): board.MarkX, at(1, 1): board.MarkO, at(1, 2): board.MarkO,
			at(2, 0): board.MarkO, at(2, 1): board.MarkX,
		} {
			_ = gs.Board.PlaceMark(pos, mk)
		}
		gs.LineBreak = 1
	})
	require.NoError(t, m.SkipCardPhase(alice))
	res, err := m.PlaceMark(alice, at(2, 2))
	require.NoError(t, err)
	assert.True(t, res.Over)
	winner, draw := m.Winner()
	assert.Empty(t, winner, "the completed diagonal is voided")
	assert.True(t, draw)
	assert.Equal(t, 0, m.Snapshot().LineBreak)
}

func TestTimersTickAtEndOfTurn(t *testing.T) {
	m := startedMatch(t)
	giveHand(m, 0, cards.Occupy)
	_, err := m.UseCard(alice, cards.Occupy, effects.Params{Position: &board.Position{Row: 2, Col: 2}})
	require.NoError(t, err)

	_, err = m.PlaceMark(alice, at(0, 0))
	require.NoError(t, err)
	cell := m.Snapshot().Board.Cells[2][2]
	assert.Equal(t, 1, cell.Occupy)
	assert.Equal(t, 0, cell.OccupyOwner)

	require.NoError(t, m.SkipCardPhase(bob))
	_, err = m.PlaceMark(bob, at(2, 2))
	assert.ErrorIs(t, err, board.ErrOccupiedByOther)
	_, err = m.PlaceMark(bob, at(1, 0))
	require.NoError(t, err)

	cell = m.Snapshot().Board.Cells[2][2]
	assert.Equal(t, 0, cell.Occupy)
	assert.Equal(t, board.NoOwner, cell.OccupyOwner)
}

func TestPlayerViewHidesOpponent(t *testing.T) {
	m := startedMatch(t)
	arrange(m, func(gs *state.GameState) {
		gs.Players[1].Pending = state.AwaitSelection(cards.Foresee, []int{1, 2, 3})
	})

	view, err := m.PlayerView(alice)
	require.NoError(t, err)
	full := m.Snapshot()

	assert.Equal(t, full.Players[0].Hand, view.Players[0].Hand)
	assert.Equal(t, full.Players[0].Deck, view.Players[0].Deck)
	assert.Len(t, view.Players[1].Hand, len(full.Players[1].Hand))
	assert.Len(t, view.Players[1].Deck, len(full.Players[1].Deck))
	for _, id := range append(view.Players[1].Hand, view.Players[1].Deck...) {
		assert.Equal(t, HiddenCard, id)
	}
	assert.Nil(t, view.Players[1].Pending.Candidates)

	view.Players[0].Hand[0] = 99
	assert.NotEqual(t, 99, m.Snapshot().Players[0].Hand[0], "view is a copy")

	_, err = m.PlayerView("carol")
	assert.Equal(t, CodePlayerNotFound, CodeOf(err))
}
