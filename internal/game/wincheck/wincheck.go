// Package wincheck evaluates boards for completed lines and draws.
// Every function is pure: boards are read, never modified.
package wincheck

import (
	"github.com/syu-y/card-tictactoe/internal/game/board"
)

// WinLength is the number of consecutive cells that form a line.
const WinLength = 3

// LineKind identifies the family a winning line belongs to.
type LineKind string

const (
	LineRow      LineKind = "row"
	LineCol      LineKind = "col"
	LineDiag     LineKind = "diag1"
	LineAntiDiag LineKind = "diag2"
)

// Line is a winning run of cells.
type Line struct {
	Kind      LineKind         `json:"type"`
	Positions []board.Position `json:"positions"`
}

// Outcome classifies a board after a move.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeWin
	OutcomeDraw
)

var outcomeNames = map[Outcome]string{
	OutcomeContinue: "continue",
	OutcomeWin:      "win",
	OutcomeDraw:     "draw",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Result is the verdict of CheckGameOver.
type Result struct {
	Outcome Outcome
	Winner  board.Mark
	Line    *Line
}

// Over reports whether the game has ended.
func (r Result) Over() bool {
	return r.Outcome != OutcomeContinue
}

// CheckWin scans rows top to bottom, then columns, then both diagonal
// families. The first completed window wins; within a window O is tested
// before X.
func CheckWin(b *board.Board) (board.Mark, *Line, bool) {
	for _, kind := range []LineKind{LineRow, LineCol, LineDiag, LineAntiDiag} {
		for _, window := range windows(b, kind) {
			if mark, ok := windowWinner(b, window); ok {
				return mark, &Line{Kind: kind, Positions: window}, true
			}
		}
	}
	return board.MarkEmpty, nil, false
}

// IsBoardFull reports whether no cell is both empty and unlocked.
func IsBoardFull(b *board.Board) bool {
	for _, row := range b.Cells {
		for _, cell := range row {
			if cell.IsEmpty() && cell.Lock == 0 {
				return false
			}
		}
	}
	return true
}

// CheckGameOver checks for a win first and a draw second.
func CheckGameOver(b *board.Board) Result {
	if mark, line, ok := CheckWin(b); ok {
		return Result{Outcome: OutcomeWin, Winner: mark, Line: line}
	}
	if IsBoardFull(b) {
		return Result{Outcome: OutcomeDraw, Winner: board.MarkEmpty}
	}
	return Result{Outcome: OutcomeContinue, Winner: board.MarkEmpty}
}

// WinningMoves lists the cells where placing mark would immediately win.
func WinningMoves(b *board.Board, mark board.Mark) []board.Position {
	var moves []board.Position
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			pos := board.Position{Row: r, Col: c}
			trial := b.Clone()
			if err := trial.PlaceMark(pos, mark); err != nil {
				continue
			}
			if winner, _, ok := CheckWin(trial); ok && winner == mark {
				moves = append(moves, pos)
			}
		}
	}
	return moves
}

// BlockingMoves lists the cells the opponent of mark must take to stop
// mark from winning next turn.
func BlockingMoves(b *board.Board, mark board.Mark) []board.Position {
	return WinningMoves(b, mark.Opposite())
}

func windows(b *board.Board, kind LineKind) [][]board.Position {
	var out [][]board.Position
	switch kind {
	case LineRow:
		for r := 0; r < b.Rows; r++ {
			for c := 0; c+WinLength <= b.Cols; c++ {
				out = append(out, run(r, c, 0, 1))
			}
		}
	case LineCol:
		for c := 0; c < b.Cols; c++ {
			for r := 0; r+WinLength <= b.Rows; r++ {
				out = append(out, run(r, c, 1, 0))
			}
		}
	case LineDiag:
		for r := 0; r+WinLength <= b.Rows; r++ {
			for c := 0; c+WinLength <= b.Cols; c++ {
				out = append(out, run(r, c, 1, 1))
			}
		}
	case LineAntiDiag:
		for r := 0; r+WinLength <= b.Rows; r++ {
			for c := WinLength - 1; c < b.Cols; c++ {
				out = append(out, run(r, c, 1, -1))
			}
		}
	}
	return out
}

func run(r, c, dr, dc int) []board.Position {
	positions := make([]board.Position, WinLength)
	for i := range positions {
		positions[i] = board.Position{Row: r + i*dr, Col: c + i*dc}
	}
	return positions
}

func windowWinner(b *board.Board, window []board.Position) (board.Mark, bool) {
	for _, pos := range window {
		if b.Cells[pos.Row][pos.Col].NoLine > 0 {
			return board.MarkEmpty, false
		}
	}
	for _, mark := range []board.Mark{board.MarkO, board.MarkX} {
		if windowMatches(b, window, mark) {
			return mark, true
		}
	}
	return board.MarkEmpty, false
}

func windowMatches(b *board.Board, window []board.Position, mark board.Mark) bool {
	for _, pos := range window {
		cell := b.Cells[pos.Row][pos.Col]
		if cell.Wild > 0 {
			continue
		}
		if cell.Mark != mark {
			return false
		}
	}
	return true
}
