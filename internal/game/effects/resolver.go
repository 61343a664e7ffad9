// Package effects resolves card effects against a game state.
//
// Each card id maps to a small record holding its category, a parameter
// check and the mutation itself. Apply mutates the state it is given, so
// callers that need all-or-nothing semantics pass a clone and keep it only
// when Apply succeeds.
package effects

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/game/board"
	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/game/state"
)

// Effect durations in turns.
const (
	LockTurns       = 2
	DoubleLockTurns = 4
	NoLineTurns     = 2
	WildTurns       = 1
	ProtectTurns    = 2
	OccupyTurns     = 2
	LineBreakChecks = 1

	MaxRerollCards   = 2
	SearchCandidates = 5
	ForeseeDepth     = 3
)

// Errors reported by effects. Board errors pass through wrapped.
var (
	ErrUnknownCard       = errors.New("unknown card")
	ErrMissingParams     = errors.New("missing required parameters")
	ErrNotOwnMark        = errors.New("source must hold your own mark")
	ErrNotOpponentMark   = errors.New("source must hold the opponent's mark")
	ErrEmptyDeck         = errors.New("deck is empty")
	ErrHandFull          = errors.New("hand is full")
	ErrEmptyDiscard      = errors.New("discard pile is empty")
	ErrBadHandIndex      = errors.New("invalid hand index")
	ErrBadCategory       = errors.New("unknown card category")
	ErrNoCandidates      = errors.New("no matching cards in deck")
	ErrInvalidSelection  = errors.New("selected card is not an available candidate")
	ErrSelectionRequired = errors.New("a selection is pending for another card")
)

// Params carries the optional arguments of a card. Which fields are
// required depends on the card.
type Params struct {
	Position       *board.Position `json:"position,omitempty"`
	FromPosition   *board.Position `json:"fromPosition,omitempty"`
	ToPosition     *board.Position `json:"toPosition,omitempty"`
	Position1      *board.Position `json:"position1,omitempty"`
	Position2      *board.Position `json:"position2,omitempty"`
	Direction      board.Direction `json:"direction,omitempty"`
	RowCol         board.Axis      `json:"rowCol,omitempty"`
	RowOrCol       *int            `json:"rowOrCol,omitempty"`
	Category       cards.Category  `json:"category,omitempty"`
	DiscardIndices []int           `json:"discardIndices,omitempty"`
	SelectedCardID int             `json:"selectedCardId,omitempty"`
}

// Outcome describes a successful effect.
type Outcome struct {
	Message           string
	BoardChanged      bool
	NeedsClientUpdate bool
}

// target bundles what an effect may touch.
type target struct {
	gs       *state.GameState
	seat     int
	player   *state.PlayerState
	opponent *state.PlayerState
	board    *board.Board
	cardID   int
}

type effect struct {
	category cards.Category
	validate func(p Params) error
	apply    func(t *target, p Params) (Outcome, error)
}

// Resolver applies card effects.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a new card effect resolver
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := checkTable(table); err != nil {
		logger.Error("effect table disagrees with card catalog", zap.Error(err))
	}
	return &Resolver{logger: logger}
}

// Apply resolves cardID for seat against gs. On error gs may be partially
// modified and must be discarded by the caller.
func (r *Resolver) Apply(gs *state.GameState, seat, cardID int, params Params) (Outcome, error) {
	e, ok := table[cardID]
	if !ok {
		return Outcome{}, fmt.Errorf("card %d: %w", cardID, ErrUnknownCard)
	}
	if seat != 0 && seat != 1 {
		return Outcome{}, fmt.Errorf("invalid seat %d", seat)
	}
	if err := e.validate(params); err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", cards.Name(cardID), err)
	}

	t := &target{
		gs:       gs,
		seat:     seat,
		player:   &gs.Players[seat],
		opponent: &gs.Players[state.Opponent(seat)],
		board:    gs.Board,
		cardID:   cardID,
	}
	out, err := e.apply(t, params)
	if err != nil {
		r.logger.Debug("card effect rejected",
			zap.String("room_id", gs.RoomID),
			zap.Int("seat", seat),
			zap.Int("card_id", cardID),
			zap.Error(err),
		)
		return Outcome{}, fmt.Errorf("%s: %w", cards.Name(cardID), err)
	}

	r.logger.Debug("card effect applied",
		zap.String("room_id", gs.RoomID),
		zap.Int("seat", seat),
		zap.Int("card_id", cardID),
		zap.String("category", string(e.category)),
		zap.Bool("board_changed", out.BoardChanged),
	)
	return out, nil
}

// checkTable reports catalog cards without an effect and effects filed
// under a different category than their card.
func checkTable(tbl map[int]effect) error {
	var errs []error
	for _, c := range cards.All() {
		e, ok := tbl[c.ID]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("card %d: %w", c.ID, ErrUnknownCard))
		case e.category != c.Category:
			errs = append(errs, fmt.Errorf("card %d: effect category %q, catalog %q: %w",
				c.ID, e.category, c.Category, ErrBadCategory))
		}
	}
	return errors.Join(errs...)
}

var table = map[int]effect{
	cards.Expand:        {cards.CategoryBoard, needEdge, applyExpand},
	cards.Shrink:        {cards.CategoryBoard, needEdge, applyShrink},
	cards.Push:          {cards.CategoryBoard, needPush, applyPush},
	cards.Slide:         {cards.CategoryBoard, needFromTo, moveOwn(true)},
	cards.Teleport:      {cards.CategoryBoard, needFromTo, moveOwn(false)},
	cards.Copy:          {cards.CategoryBoard, needFromTo, applyCopy},
	cards.LineSplit:     {cards.CategoryBoard, needPosition, guardedTimer(noLine(NoLineTurns), false)},
	cards.Lock:          {cards.CategoryDisruption, needPosition, guardedTimer(lock(LockTurns), false)},
	cards.DoubleLock:    {cards.CategoryDisruption, needPosition, guardedTimer(lock(DoubleLockTurns), false)},
	cards.Reverse:       {cards.CategoryDisruption, needPosition, applyFlip},
	cards.ForcedMove:    {cards.CategoryDisruption, needFromTo, applyForcedMove},
	cards.Disrupt:       {cards.CategoryDisruption, needPosition, guardedTimer(noLine(NoLineTurns), false)},
	cards.Wild:          {cards.CategoryDisruption, needPosition, guardedTimer(wild(WildTurns), true)},
	cards.LineBreak:     {cards.CategoryDisruption, needNothing, applyLineBreak},
	cards.ForcedPass:    {cards.CategoryDisruption, needNothing, applyForcedPass},
	cards.Swap:          {cards.CategoryDisruption, needPair, applySwap},
	cards.Occupy:        {cards.CategoryDisruption, needPosition, applyOccupy},
	cards.Protect:       {cards.CategoryDefense, needPosition, setTimer(protect(ProtectTurns))},
	cards.Fortify:       {cards.CategoryDefense, needPosition, setTimer(protect(ProtectTurns))},
	cards.Dispel:        {cards.CategoryDefense, needPosition, setTimer(dispelPatch())},
	cards.Nullify:       {cards.CategoryDefense, needPosition, setTimer(nullifyPatch())},
	cards.DrawOne:       {cards.CategorySupport, needNothing, applyDraw(1)},
	cards.DrawTwo:       {cards.CategorySupport, needNothing, applyDraw(2)},
	cards.Reroll:        {cards.CategorySupport, needDiscardIndices, applyReroll},
	cards.Reclaim:       {cards.CategorySupport, needNothing, applyReclaim},
	cards.CostReduction: {cards.CategorySupport, needNothing, applyCostReduction},
	cards.Search:        {cards.CategorySupport, needNothing, applySearch},
	cards.Foresee:       {cards.CategorySupport, needNothing, applyForesee},
	cards.WildPlacement: {cards.CategorySupport, needPosition, guardedTimer(wild(WildTurns), true)},
}

func needNothing(Params) error { return nil }

func needPosition(p Params) error {
	if p.Position == nil {
		return fmt.Errorf("position: %w", ErrMissingParams)
	}
	return nil
}

func needFromTo(p Params) error {
	if p.FromPosition == nil || p.ToPosition == nil {
		return fmt.Errorf("fromPosition and toPosition: %w", ErrMissingParams)
	}
	return nil
}

func needPair(p Params) error {
	if p.Position1 == nil || p.Position2 == nil {
		return fmt.Errorf("position1 and position2: %w", ErrMissingParams)
	}
	return nil
}

func needEdge(p Params) error {
	if p.RowCol == "" || p.Direction == "" {
		return fmt.Errorf("rowCol and direction: %w", ErrMissingParams)
	}
	return nil
}

func needPush(p Params) error {
	if p.RowCol == "" || p.Direction == "" || p.RowOrCol == nil {
		return fmt.Errorf("rowCol, rowOrCol and direction: %w", ErrMissingParams)
	}
	return nil
}

func needDiscardIndices(p Params) error {
	if len(p.DiscardIndices) == 0 {
		return fmt.Errorf("discardIndices: %w", ErrMissingParams)
	}
	return nil
}

func boardChanged(msg string) Outcome {
	return Outcome{Message: msg, BoardChanged: true, NeedsClientUpdate: true}
}

func cardsChanged(msg string) Outcome {
	return Outcome{Message: msg, NeedsClientUpdate: true}
}
