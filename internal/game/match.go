package game

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/game/board"
	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/game/effects"
	"github.com/syu-y/card-tictactoe/internal/game/state"
	"github.com/syu-y/card-tictactoe/internal/game/wincheck"
)

// Participant identifies a player taking a seat in a match.
type Participant struct {
	ID   string
	Name string
}

// Match runs the turn cycle of one game. It is not safe for concurrent use;
// the owning room serializes access.
type Match struct {
	state    *state.GameState
	resolver *effects.Resolver
	rng      *rand.Rand
	logger   *zap.Logger
}

// Option configures a Match.
type Option func(*Match)

// WithRand sets the random source used to shuffle decks.
func WithRand(rng *rand.Rand) Option {
	return func(m *Match) {
		m.rng = rng
	}
}

// WithLogger sets the match logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Match) {
		m.logger = logger
	}
}

// NewMatch creates a match in the deck selection phase. Seat 0 plays O and moves first.
func NewMatch(roomID string, players [2]Participant, opts ...Option) *Match {
	m := &Match{}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.rng == nil {
		seed := uint64(time.Now().UnixNano())
		m.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	m.resolver = effects.NewResolver(m.logger)
	m.state = state.New(roomID, [2]state.PlayerState{
		{ID: players[0].ID, Name: players[0].Name},
		{ID: players[1].ID, Name: players[1].Name},
	})
	return m
}

// SetDeck validates and shuffles a player's deck. Decks may only be set
// before the game starts.
func (m *Match) SetDeck(playerID string, deck []int) error {
	seat, err := m.seat(playerID)
	if err != nil {
		return err
	}
	if m.state.Phase != state.PhaseDeckSelect {
		return ruleErr(CodeWrongPhase, "decks can only be set before the game starts")
	}
	if err := cards.ValidateDeck(deck); err != nil {
		return wrapRule(CodeInvalidDeck, "invalid deck", err)
	}

	shuffled := append([]int{}, deck...)
	m.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	p := &m.state.Players[seat]
	p.Deck = shuffled
	p.DeckSet = true

	m.logger.Debug("deck set",
		zap.String("room_id", m.state.RoomID),
		zap.String("player_id", playerID),
	)
	return nil
}

// DecksReady reports whether both players have submitted a deck.
func (m *Match) DecksReady() bool {
	return m.state.Players[0].DeckSet && m.state.Players[1].DeckSet
}

// StartGame deals the opening hands and gives the first turn to seat 0.
func (m *Match) StartGame() error {
	if m.state.Phase != state.PhaseDeckSelect {
		return ruleErr(CodeWrongPhase, "game already started")
	}
	if !m.DecksReady() {
		return ruleErr(CodeDecksNotReady, "both players must set a deck")
	}

	work := m.state.Clone()
	for i := range work.Players {
		work.Players[i].Draw(state.InitialHand)
	}
	work.Phase = state.PhaseCard
	work.CurrentPlayer = 0
	work.TurnCount = 1
	m.state = work

	m.logger.Info("game started",
		zap.String("room_id", work.RoomID),
		zap.String("first_player", work.Players[0].ID),
	)
	return nil
}

// UseCard plays cardID from the player's hand. The effect is resolved on a
// copy of the state which replaces the live state only on success.
func (m *Match) UseCard(playerID string, cardID int, params effects.Params) (effects.Outcome, error) {
	seat, err := m.turnSeat(playerID, state.PhaseCard)
	if err != nil {
		return effects.Outcome{}, err
	}

	current := &m.state.Players[seat]
	selecting := current.Pending.Awaiting()
	if selecting && current.Pending.CardID != cardID {
		return effects.Outcome{}, ruleErr(CodeSelectionPending, "finish or cancel the pending card first")
	}
	if current.HandIndex(cardID) < 0 {
		return effects.Outcome{}, ruleErr(CodeCardNotInHand, "card is not in your hand")
	}
	if !current.IgnoreCardLimit && !selecting {
		if m.state.CardUsedThisTurn {
			return effects.Outcome{}, ruleErr(CodeCardLimit, "a card was already used this turn")
		}
		if current.NoMoreCardThisTurn {
			return effects.Outcome{}, ruleErr(CodeCardLimit, "no more cards may be used this turn")
		}
	}

	card, _ := cards.Get(cardID)
	work := m.state.Clone()
	p := &work.Players[seat]

	deferred := cardID == cards.Reroll || cardID == cards.Reclaim
	revealing := card.MultiStep && !selecting
	if !deferred && !revealing {
		p.DiscardFromHand(cardID)
	}

	out, err := m.resolver.Apply(work, seat, cardID, params)
	if err != nil {
		if selecting {
			// A failed selection abandons the card; it stays in hand unused.
			current.Pending = state.Idle()
		}
		m.logger.Debug("card rejected",
			zap.String("room_id", m.state.RoomID),
			zap.String("player_id", playerID),
			zap.Int("card_id", cardID),
			zap.Error(err),
		)
		return effects.Outcome{}, wrapRule(CodeCardFailed, "card could not be used", err)
	}

	if deferred {
		p.DiscardFromHand(cardID)
	}

	if p.Pending.Awaiting() {
		m.state = work
		return out, nil
	}

	work.CardUsedThisTurn = true
	if res := evaluate(work, false); res.Over() {
		m.finish(work, res)
		m.state = work
		return out, nil
	}
	work.Phase = state.PhasePlace
	m.state = work

	m.logger.Debug("card used",
		zap.String("room_id", work.RoomID),
		zap.String("player_id", playerID),
		zap.Int("card_id", cardID),
		zap.Stringer("phase", work.Phase),
	)
	return out, nil
}

// CancelPending abandons a multi-step card between its two steps. The card
// stays in hand.
func (m *Match) CancelPending(playerID string) error {
	seat, err := m.turnSeat(playerID, state.PhaseCard)
	if err != nil {
		return err
	}
	p := &m.state.Players[seat]
	if !p.Pending.Awaiting() {
		return ruleErr(CodeNothingPending, "no card is waiting for a selection")
	}
	p.Pending = state.Idle()
	return nil
}

// SkipCardPhase moves straight to placement without using a card.
func (m *Match) SkipCardPhase(playerID string) error {
	seat, err := m.turnSeat(playerID, state.PhaseCard)
	if err != nil {
		return err
	}
	m.state.Players[seat].Pending = state.Idle()
	m.state.Phase = state.PhasePlace
	return nil
}

// PlaceResult describes a completed placement call.
type PlaceResult struct {
	Skipped bool
	Over    bool
}

// PlaceMark places the player's mark and ends the turn. A player under a
// forced pass places nothing but the turn still ends.
func (m *Match) PlaceMark(playerID string, pos board.Position) (PlaceResult, error) {
	seat, err := m.turnSeat(playerID, state.PhasePlace)
	if err != nil {
		return PlaceResult{}, err
	}

	work := m.state.Clone()
	p := &work.Players[seat]

	if p.SkipNextPlace {
		p.SkipNextPlace = false
		endTurn(work)
		m.state = work
		m.logger.Debug("placement skipped",
			zap.String("room_id", work.RoomID),
			zap.String("player_id", playerID),
		)
		return PlaceResult{Skipped: true}, nil
	}

	if err := work.Board.PlaceMark(pos, p.Mark); err != nil {
		return PlaceResult{}, wrapRule(CodeInvalidMove, "cannot place there", err)
	}

	if res := evaluate(work, true); res.Over() {
		m.finish(work, res)
		m.state = work
		return PlaceResult{Over: true}, nil
	}

	endTurn(work)
	m.state = work
	return PlaceResult{}, nil
}

// evaluate checks for game over. An active line break voids the win check;
// consume spends one charge of it. A full board is still a draw under a line
// break, since no placement would remain to finish the game.
func evaluate(gs *state.GameState, consume bool) wincheck.Result {
	if gs.LineBreak > 0 {
		if consume {
			gs.LineBreak--
		}
		if wincheck.IsBoardFull(gs.Board) {
			return wincheck.Result{Outcome: wincheck.OutcomeDraw, Winner: board.MarkEmpty}
		}
		return wincheck.Result{Outcome: wincheck.OutcomeContinue, Winner: board.MarkEmpty}
	}
	return wincheck.CheckGameOver(gs.Board)
}

func (m *Match) finish(gs *state.GameState, res wincheck.Result) {
	gs.Phase = state.PhaseGameOver
	for i := range gs.Players {
		gs.Players[i].Pending = state.Idle()
	}
	if res.Outcome == wincheck.OutcomeWin {
		gs.Winner = gs.Players[res.Winner.Seat()].ID
		gs.WinningLine = res.Line
	} else {
		gs.Draw = true
	}
	m.logger.Info("game over",
		zap.String("room_id", gs.RoomID),
		zap.String("winner", gs.Winner),
		zap.Bool("draw", gs.Draw),
		zap.Int("turn", gs.TurnCount),
	)
}

// endTurn resets the acting player's turn flags, ticks every timer, hands
// the turn over and draws one card for the next player.
func endTurn(gs *state.GameState) {
	p := gs.Current()
	p.ResetTurnFlags()
	p.Pending = state.Idle()
	gs.CardUsedThisTurn = false

	gs.Board.DecrementTimers()
	if gs.LineBreak > 0 {
		gs.LineBreak--
	}

	gs.CurrentPlayer = state.Opponent(gs.CurrentPlayer)
	gs.TurnCount++
	gs.Current().Draw(1)
	gs.Phase = state.PhaseCard
}

func (m *Match) seat(playerID string) (int, error) {
	seat := m.state.Seat(playerID)
	if seat < 0 {
		return -1, ruleErr(CodePlayerNotFound, "player is not part of this match")
	}
	return seat, nil
}

// turnSeat resolves the caller's seat and checks it is their turn in phase.
func (m *Match) turnSeat(playerID string, phase state.Phase) (int, error) {
	seat, err := m.seat(playerID)
	if err != nil {
		return -1, err
	}
	switch {
	case m.state.Phase == state.PhaseGameOver:
		return -1, ruleErr(CodeGameOver, "the game is over")
	case m.state.Phase == state.PhaseDeckSelect:
		return -1, ruleErr(CodeWrongPhase, "the game has not started")
	case m.state.CurrentPlayer != seat:
		return -1, ruleErr(CodeNotYourTurn, "it is not your turn")
	case m.state.Phase != phase:
		return -1, ruleErr(CodeWrongPhase, "not allowed in the "+m.state.Phase.String()+" phase")
	}
	return seat, nil
}

// Phase returns the current phase.
func (m *Match) Phase() state.Phase {
	return m.state.Phase
}

// RoomID returns the room the match belongs to.
func (m *Match) RoomID() string {
	return m.state.RoomID
}

// CurrentPlayerID returns the id of the player to move.
func (m *Match) CurrentPlayerID() string {
	return m.state.Current().ID
}

// IsOver reports whether the match has ended.
func (m *Match) IsOver() bool {
	return m.state.Phase == state.PhaseGameOver
}

// Winner returns the winning player id and whether the game ended in a draw.
func (m *Match) Winner() (winner string, draw bool) {
	return m.state.Winner, m.state.Draw
}

// AwaitingSelection reports whether playerID has a two-step card waiting
// for its second call.
func (m *Match) AwaitingSelection(playerID string) bool {
	seat := m.state.Seat(playerID)
	return seat >= 0 && m.state.Players[seat].Pending.Awaiting()
}

// SeatOf returns the seat index of playerID, or -1.
func (m *Match) SeatOf(playerID string) int {
	return m.state.Seat(playerID)
}

// TurnCount returns the current turn number.
func (m *Match) TurnCount() int {
	return m.state.TurnCount
}

// Snapshot returns a deep copy of the full state.
func (m *Match) Snapshot() *state.GameState {
	return m.state.Clone()
}

// Restore replaces the state with a deep copy of gs.
func (m *Match) Restore(gs *state.GameState) {
	m.state = gs.Clone()
}
