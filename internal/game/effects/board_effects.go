package effects

import (
	"fmt"

	"github.com/syu-y/card-tictactoe/internal/game/board"
)

func applyExpand(t *target, p Params) (Outcome, error) {
	if err := t.board.Expand(p.RowCol, p.Direction); err != nil {
		return Outcome{}, err
	}
	return boardChanged(fmt.Sprintf("board expanded to %dx%d", t.board.Rows, t.board.Cols)), nil
}

func applyShrink(t *target, p Params) (Outcome, error) {
	if err := t.board.Shrink(p.RowCol, p.Direction); err != nil {
		return Outcome{}, err
	}
	return boardChanged(fmt.Sprintf("board shrunk to %dx%d", t.board.Rows, t.board.Cols)), nil
}

func applyPush(t *target, p Params) (Outcome, error) {
	if err := t.board.Push(p.RowCol, *p.RowOrCol, p.Direction); err != nil {
		return Outcome{}, err
	}
	return boardChanged("line pushed"), nil
}

// moveOwn relocates one of the player's own marks; slide needs adjacency.
func moveOwn(adjacent bool) func(t *target, p Params) (Outcome, error) {
	return func(t *target, p Params) (Outcome, error) {
		if err := t.requireMark(*p.FromPosition, t.player.Mark, ErrNotOwnMark); err != nil {
			return Outcome{}, err
		}
		if err := t.board.MoveMark(*p.FromPosition, *p.ToPosition, adjacent); err != nil {
			return Outcome{}, err
		}
		return boardChanged("mark moved"), nil
	}
}

func applyCopy(t *target, p Params) (Outcome, error) {
	if err := t.requireMark(*p.FromPosition, t.player.Mark, ErrNotOwnMark); err != nil {
		return Outcome{}, err
	}
	if err := t.board.CopyMark(*p.FromPosition, *p.ToPosition); err != nil {
		return Outcome{}, err
	}
	return boardChanged("mark copied"), nil
}

func applyFlip(t *target, p Params) (Outcome, error) {
	if err := t.board.FlipMark(*p.Position, t.seat); err != nil {
		return Outcome{}, err
	}
	return boardChanged("mark reversed"), nil
}

func applyForcedMove(t *target, p Params) (Outcome, error) {
	from := *p.FromPosition
	if err := t.requireMark(from, t.opponent.Mark, ErrNotOpponentMark); err != nil {
		return Outcome{}, err
	}
	cell, _ := t.board.Cell(from)
	if cell.OccupiedAgainst(t.seat) {
		return Outcome{}, fmt.Errorf("forced move %s: %w", from, board.ErrOccupiedByOther)
	}
	if err := t.board.MoveMark(from, *p.ToPosition, true); err != nil {
		return Outcome{}, err
	}
	return boardChanged("opponent mark moved"), nil
}

func applySwap(t *target, p Params) (Outcome, error) {
	if err := t.board.SwapMarks(*p.Position1, *p.Position2, t.seat); err != nil {
		return Outcome{}, err
	}
	return boardChanged("marks swapped"), nil
}

func applyOccupy(t *target, p Params) (Outcome, error) {
	pos := *p.Position
	if _, err := t.unprotectedCell(pos); err != nil {
		return Outcome{}, err
	}
	owner := t.seat
	patch := board.TimerPatch{Occupy: board.Turns(OccupyTurns), OccupyOwner: &owner}
	if err := t.board.SetCellState(pos, patch); err != nil {
		return Outcome{}, err
	}
	return boardChanged("cell occupied"), nil
}

func lock(turns int) board.TimerPatch {
	return board.TimerPatch{Lock: board.Turns(turns)}
}

func noLine(turns int) board.TimerPatch {
	return board.TimerPatch{NoLine: board.Turns(turns)}
}

func wild(turns int) board.TimerPatch {
	return board.TimerPatch{Wild: board.Turns(turns)}
}

func protect(turns int) board.TimerPatch {
	return board.TimerPatch{Protect: board.Turns(turns)}
}

func dispelPatch() board.TimerPatch {
	return board.TimerPatch{Lock: board.Turns(0), NoLine: board.Turns(0), Wild: board.Turns(0)}
}

func nullifyPatch() board.TimerPatch {
	return board.TimerPatch{Lock: board.Turns(0), Protect: board.Turns(0), NoLine: board.Turns(0), Wild: board.Turns(0)}
}

// guardedTimer writes patch to an unprotected cell. markRequired rejects
// empty targets.
func guardedTimer(patch board.TimerPatch, markRequired bool) func(t *target, p Params) (Outcome, error) {
	return func(t *target, p Params) (Outcome, error) {
		pos := *p.Position
		cell, err := t.unprotectedCell(pos)
		if err != nil {
			return Outcome{}, err
		}
		if markRequired && cell.IsEmpty() {
			return Outcome{}, fmt.Errorf("target %s: %w", pos, board.ErrCellEmpty)
		}
		if err := t.board.SetCellState(pos, patch); err != nil {
			return Outcome{}, err
		}
		return boardChanged("cell state updated"), nil
	}
}

// setTimer writes patch to any cell on the board.
func setTimer(patch board.TimerPatch) func(t *target, p Params) (Outcome, error) {
	return func(t *target, p Params) (Outcome, error) {
		if err := t.board.SetCellState(*p.Position, patch); err != nil {
			return Outcome{}, err
		}
		return boardChanged("cell state updated"), nil
	}
}

func (t *target) requireMark(pos board.Position, mark board.Mark, mismatch error) error {
	cell, ok := t.board.Cell(pos)
	if !ok {
		return fmt.Errorf("source %s: %w", pos, board.ErrOutOfRange)
	}
	if cell.Mark != mark {
		return fmt.Errorf("source %s: %w", pos, mismatch)
	}
	return nil
}

func (t *target) unprotectedCell(pos board.Position) (board.Cell, error) {
	cell, ok := t.board.Cell(pos)
	if !ok {
		return board.Cell{}, fmt.Errorf("target %s: %w", pos, board.ErrOutOfRange)
	}
	if cell.Protect > 0 {
		return board.Cell{}, fmt.Errorf("target %s: %w", pos, board.ErrCellProtected)
	}
	return cell, nil
}
