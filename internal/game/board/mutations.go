package board

import "fmt"

// PlaceMark puts mark on an empty, unlocked cell. A cell occupied by the
// other seat rejects the placement.
func (b *Board) PlaceMark(pos Position, mark Mark) error {
	if !b.InBounds(pos) {
		return fmt.Errorf("place %s: %w", pos, ErrOutOfRange)
	}
	cell := b.at(pos)
	if !cell.IsEmpty() {
		return fmt.Errorf("place %s: %w", pos, ErrCellOccupied)
	}
	if cell.Lock > 0 {
		return fmt.Errorf("place %s: %w", pos, ErrCellLocked)
	}
	if cell.OccupiedAgainst(mark.Seat()) {
		return fmt.Errorf("place %s: %w", pos, ErrOccupiedByOther)
	}
	cell.Mark = mark
	return nil
}

// Expand inserts an empty row (UP/DOWN) or column (LEFT/RIGHT) at the edge.
func (b *Board) Expand(axis Axis, dir Direction) error {
	if err := checkEdgeDirection(axis, dir); err != nil {
		return fmt.Errorf("expand: %w", err)
	}
	switch axis {
	case AxisRow:
		if b.Rows >= MaxSize {
			return fmt.Errorf("expand: %w", ErrMaxSize)
		}
		row := emptyRow(b.Cols)
		if dir == DirUp {
			b.Cells = append([][]Cell{row}, b.Cells...)
		} else {
			b.Cells = append(b.Cells, row)
		}
		b.Rows++
	case AxisCol:
		if b.Cols >= MaxSize {
			return fmt.Errorf("expand: %w", ErrMaxSize)
		}
		for r := range b.Cells {
			if dir == DirLeft {
				b.Cells[r] = append([]Cell{EmptyCell()}, b.Cells[r]...)
			} else {
				b.Cells[r] = append(b.Cells[r], EmptyCell())
			}
		}
		b.Cols++
	}
	return nil
}

// Shrink removes the edge row or column named by dir. The edge must hold no marks.
func (b *Board) Shrink(axis Axis, dir Direction) error {
	if err := checkEdgeDirection(axis, dir); err != nil {
		return fmt.Errorf("shrink: %w", err)
	}
	switch axis {
	case AxisRow:
		if b.Rows <= MinSize {
			return fmt.Errorf("shrink: %w", ErrMinSize)
		}
		idx := 0
		if dir == DirDown {
			idx = b.Rows - 1
		}
		for _, cell := range b.Cells[idx] {
			if !cell.IsEmpty() {
				return fmt.Errorf("shrink row %d: %w", idx, ErrEdgeNotEmpty)
			}
		}
		b.Cells = append(b.Cells[:idx:idx], b.Cells[idx+1:]...)
		b.Rows--
	case AxisCol:
		if b.Cols <= MinSize {
			return fmt.Errorf("shrink: %w", ErrMinSize)
		}
		idx := 0
		if dir == DirRight {
			idx = b.Cols - 1
		}
		for r := range b.Cells {
			if !b.Cells[r][idx].IsEmpty() {
				return fmt.Errorf("shrink col %d: %w", idx, ErrEdgeNotEmpty)
			}
		}
		for r := range b.Cells {
			b.Cells[r] = append(b.Cells[r][:idx:idx], b.Cells[r][idx+1:]...)
		}
		b.Cols--
	}
	return nil
}

// Push shifts one row (LEFT/RIGHT) or column (UP/DOWN) by a single cell.
// The cell leaving the board is discarded and an empty cell enters at the
// opposite edge. Timers travel with their cells.
func (b *Board) Push(axis Axis, index int, dir Direction) error {
	switch axis {
	case AxisRow:
		if dir != DirLeft && dir != DirRight {
			return fmt.Errorf("push row: %w", ErrBadDirection)
		}
		if index < 0 || index >= b.Rows {
			return fmt.Errorf("push row %d: %w", index, ErrBadIndex)
		}
		row := b.Cells[index]
		if dir == DirLeft {
			copy(row, row[1:])
			row[len(row)-1] = EmptyCell()
		} else {
			copy(row[1:], row[:len(row)-1])
			row[0] = EmptyCell()
		}
	case AxisCol:
		if dir != DirUp && dir != DirDown {
			return fmt.Errorf("push col: %w", ErrBadDirection)
		}
		if index < 0 || index >= b.Cols {
			return fmt.Errorf("push col %d: %w", index, ErrBadIndex)
		}
		if dir == DirUp {
			for r := 0; r < b.Rows-1; r++ {
				b.Cells[r][index] = b.Cells[r+1][index]
			}
			b.Cells[b.Rows-1][index] = EmptyCell()
		} else {
			for r := b.Rows - 1; r > 0; r-- {
				b.Cells[r][index] = b.Cells[r-1][index]
			}
			b.Cells[0][index] = EmptyCell()
		}
	default:
		return fmt.Errorf("push: %w", ErrBadAxis)
	}
	return nil
}

// MoveMark moves the mark at from onto the empty cell at to. When adjacent is
// set the two cells must be one orthogonal step apart.
func (b *Board) MoveMark(from, to Position, adjacent bool) error {
	if err := b.checkTransfer(from, to); err != nil {
		return fmt.Errorf("move %s->%s: %w", from, to, err)
	}
	if adjacent && !from.Adjacent(to) {
		return fmt.Errorf("move %s->%s: %w", from, to, ErrNotAdjacent)
	}
	b.at(to).Mark = b.at(from).Mark
	b.at(from).Mark = MarkEmpty
	return nil
}

// CopyMark duplicates the mark at from onto to along a shared row or column.
// The source cell is locked for CopyLockTurns turns.
func (b *Board) CopyMark(from, to Position) error {
	if err := b.checkTransfer(from, to); err != nil {
		return fmt.Errorf("copy %s->%s: %w", from, to, err)
	}
	if !from.SharesLine(to) {
		return fmt.Errorf("copy %s->%s: %w", from, to, ErrNotInLine)
	}
	b.at(to).Mark = b.at(from).Mark
	b.at(from).Lock = CopyLockTurns
	return nil
}

// CopyLockTurns is the lock applied to the source of a copied mark.
const CopyLockTurns = 3

func (b *Board) checkTransfer(from, to Position) error {
	if !b.InBounds(from) || !b.InBounds(to) {
		return ErrOutOfRange
	}
	src, dst := b.at(from), b.at(to)
	switch {
	case src.IsEmpty():
		return ErrCellEmpty
	case src.Protect > 0:
		return ErrCellProtected
	case !dst.IsEmpty():
		return ErrCellOccupied
	case dst.Lock > 0:
		return ErrCellLocked
	case dst.Protect > 0:
		return ErrCellProtected
	}
	return nil
}

// FlipMark toggles the mark at pos to the other player's mark.
func (b *Board) FlipMark(pos Position, seat int) error {
	if !b.InBounds(pos) {
		return fmt.Errorf("flip %s: %w", pos, ErrOutOfRange)
	}
	cell := b.at(pos)
	switch {
	case cell.IsEmpty():
		return fmt.Errorf("flip %s: %w", pos, ErrCellEmpty)
	case cell.Protect > 0:
		return fmt.Errorf("flip %s: %w", pos, ErrCellProtected)
	case cell.OccupiedAgainst(seat):
		return fmt.Errorf("flip %s: %w", pos, ErrOccupiedByOther)
	}
	cell.Mark = cell.Mark.Opposite()
	return nil
}

// SwapMarks exchanges the marks of two non-empty, unprotected cells. It is
// rejected only when both cells are occupied by the other seat.
func (b *Board) SwapMarks(a, c Position, seat int) error {
	if !b.InBounds(a) || !b.InBounds(c) {
		return fmt.Errorf("swap %s<->%s: %w", a, c, ErrOutOfRange)
	}
	ca, cc := b.at(a), b.at(c)
	switch {
	case ca.IsEmpty() || cc.IsEmpty():
		return fmt.Errorf("swap %s<->%s: %w", a, c, ErrCellEmpty)
	case ca.Protect > 0 || cc.Protect > 0:
		return fmt.Errorf("swap %s<->%s: %w", a, c, ErrCellProtected)
	case ca.OccupiedAgainst(seat) && cc.OccupiedAgainst(seat):
		return fmt.Errorf("swap %s<->%s: %w", a, c, ErrOccupiedByOther)
	}
	ca.Mark, cc.Mark = cc.Mark, ca.Mark
	return nil
}

// TimerPatch names the timers to overwrite; nil fields are left untouched.
type TimerPatch struct {
	Lock        *int
	Protect     *int
	NoLine      *int
	Wild        *int
	Occupy      *int
	OccupyOwner *int
}

// Turns is a helper for building TimerPatch values.
func Turns(n int) *int {
	return &n
}

// SetCellState overwrites the timers named in patch without any protect or
// ownership checks. Callers are responsible for those.
func (b *Board) SetCellState(pos Position, patch TimerPatch) error {
	if !b.InBounds(pos) {
		return fmt.Errorf("set cell %s: %w", pos, ErrOutOfRange)
	}
	cell := b.at(pos)
	if patch.Lock != nil {
		cell.Lock = clampTimer(*patch.Lock)
	}
	if patch.Protect != nil {
		cell.Protect = clampTimer(*patch.Protect)
	}
	if patch.NoLine != nil {
		cell.NoLine = clampTimer(*patch.NoLine)
	}
	if patch.Wild != nil {
		cell.Wild = clampTimer(*patch.Wild)
	}
	if patch.Occupy != nil {
		cell.Occupy = clampTimer(*patch.Occupy)
	}
	if patch.OccupyOwner != nil {
		cell.OccupyOwner = *patch.OccupyOwner
	}
	if cell.Occupy == 0 {
		cell.OccupyOwner = NoOwner
	}
	return nil
}

// DecrementTimers runs the end-of-turn sweep: every positive timer drops by one.
func (b *Board) DecrementTimers() {
	for r := range b.Cells {
		for c := range b.Cells[r] {
			cell := &b.Cells[r][c]
			cell.Lock = decrement(cell.Lock)
			cell.Protect = decrement(cell.Protect)
			cell.NoLine = decrement(cell.NoLine)
			cell.Wild = decrement(cell.Wild)
			cell.Occupy = decrement(cell.Occupy)
			if cell.Occupy == 0 {
				cell.OccupyOwner = NoOwner
			}
		}
	}
}

func checkEdgeDirection(axis Axis, dir Direction) error {
	switch axis {
	case AxisRow:
		if dir != DirUp && dir != DirDown {
			return ErrBadDirection
		}
	case AxisCol:
		if dir != DirLeft && dir != DirRight {
			return ErrBadDirection
		}
	default:
		return ErrBadAxis
	}
	return nil
}

func decrement(v int) int {
	if v > 0 {
		return v - 1
	}
	return 0
}

func clampTimer(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
