package board

import (
	"errors"
	"fmt"
	"strings"
)

// Board size bounds and the initial dimensions of a fresh board.
const (
	MinSize     = 3
	MaxSize     = 8
	InitialSize = 3
)

// NoOwner marks a cell that is not occupied by any seat.
const NoOwner = -1

// Mark is the symbol held by a cell.
type Mark string

const (
	MarkEmpty Mark = "E"
	MarkO     Mark = "O"
	MarkX     Mark = "X"
)

// MarkForSeat returns the mark assigned to a seat index (0 or 1).
func MarkForSeat(seat int) Mark {
	if seat == 0 {
		return MarkO
	}
	return MarkX
}

// Seat returns the seat index owning this mark, or -1 for an empty mark.
func (m Mark) Seat() int {
	switch m {
	case MarkO:
		return 0
	case MarkX:
		return 1
	default:
		return -1
	}
}

// Opposite returns the other player's mark.
func (m Mark) Opposite() Mark {
	switch m {
	case MarkO:
		return MarkX
	case MarkX:
		return MarkO
	default:
		return MarkEmpty
	}
}

// Axis selects rows or columns for structural operations.
type Axis string

const (
	AxisRow Axis = "ROW"
	AxisCol Axis = "COL"
)

// Direction is an edge or shift direction on the board.
type Direction string

const (
	DirUp    Direction = "UP"
	DirDown  Direction = "DOWN"
	DirLeft  Direction = "LEFT"
	DirRight Direction = "RIGHT"
)

// Position addresses a cell by zero-based row and column.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Adjacent reports whether q is exactly one orthogonal step away from p.
func (p Position) Adjacent(q Position) bool {
	dr := abs(p.Row - q.Row)
	dc := abs(p.Col - q.Col)
	return dr+dc == 1
}

// SharesLine reports whether p and q are on the same row or column.
func (p Position) SharesLine(q Position) bool {
	return p.Row == q.Row || p.Col == q.Col
}

// Cell is one square of the board together with its status timers.
type Cell struct {
	Mark        Mark `json:"mark"`
	Lock        int  `json:"lock"`
	Protect     int  `json:"protect"`
	NoLine      int  `json:"noLine"`
	Wild        int  `json:"wild"`
	Occupy      int  `json:"occupy"`
	OccupyOwner int  `json:"occupyOwner"`
}

// EmptyCell returns a cell with no mark and all timers cleared.
func EmptyCell() Cell {
	return Cell{Mark: MarkEmpty, OccupyOwner: NoOwner}
}

// IsEmpty reports whether the cell holds no mark.
func (c Cell) IsEmpty() bool {
	return c.Mark == MarkEmpty || c.Mark == ""
}

// OccupiedAgainst reports whether the cell is occupied by a seat other than seat.
func (c Cell) OccupiedAgainst(seat int) bool {
	return c.Occupy > 0 && c.OccupyOwner != NoOwner && c.OccupyOwner != seat
}

// Errors returned by board operations. Callers may wrap them with context.
var (
	ErrOutOfRange      = errors.New("position is out of range")
	ErrCellOccupied    = errors.New("cell already holds a mark")
	ErrCellEmpty       = errors.New("cell holds no mark")
	ErrCellLocked      = errors.New("cell is locked")
	ErrCellProtected   = errors.New("cell is protected")
	ErrOccupiedByOther = errors.New("cell is occupied by the opponent")
	ErrNotAdjacent     = errors.New("cells are not orthogonally adjacent")
	ErrNotInLine       = errors.New("cells do not share a row or column")
	ErrMaxSize         = errors.New("board is already at maximum size")
	ErrMinSize         = errors.New("board is already at minimum size")
	ErrEdgeNotEmpty    = errors.New("edge to remove holds a mark")
	ErrBadDirection    = errors.New("direction does not match axis")
	ErrBadAxis         = errors.New("unknown axis")
	ErrBadIndex        = errors.New("row or column index is out of range")
)

// Board is a rectangular grid of cells bounded by MinSize and MaxSize.
type Board struct {
	Rows  int      `json:"rows"`
	Cols  int      `json:"cols"`
	Cells [][]Cell `json:"cells"`
}

// New creates an empty board with the initial 3x3 dimensions.
func New() *Board {
	return NewSized(InitialSize, InitialSize)
}

// NewSized creates an empty board with the given dimensions.
func NewSized(rows, cols int) *Board {
	b := &Board{Rows: rows, Cols: cols, Cells: make([][]Cell, rows)}
	for r := range b.Cells {
		b.Cells[r] = emptyRow(cols)
	}
	return b
}

func emptyRow(cols int) []Cell {
	row := make([]Cell, cols)
	for c := range row {
		row[c] = EmptyCell()
	}
	return row
}

// Clone returns a deep copy that shares no memory with b.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{Rows: b.Rows, Cols: b.Cols, Cells: make([][]Cell, len(b.Cells))}
	for r, row := range b.Cells {
		out.Cells[r] = append([]Cell(nil), row...)
	}
	return out
}

// InBounds reports whether pos addresses a cell of the board.
func (b *Board) InBounds(pos Position) bool {
	return pos.Row >= 0 && pos.Row < b.Rows && pos.Col >= 0 && pos.Col < b.Cols
}

// Cell returns a copy of the cell at pos.
func (b *Board) Cell(pos Position) (Cell, bool) {
	if !b.InBounds(pos) {
		return Cell{}, false
	}
	return b.Cells[pos.Row][pos.Col], true
}

func (b *Board) at(pos Position) *Cell {
	return &b.Cells[pos.Row][pos.Col]
}

// MarkPositions returns every position holding a mark. When filter is given,
// only positions holding that mark are returned.
func (b *Board) MarkPositions(filter ...Mark) []Position {
	var positions []Position
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			cell := b.Cells[r][c]
			if cell.IsEmpty() {
				continue
			}
			if len(filter) > 0 && cell.Mark != filter[0] {
				continue
			}
			positions = append(positions, Position{Row: r, Col: c})
		}
	}
	return positions
}

// String renders the board for logs. Timed states are annotated with a
// single letter: L lock, P protect, N no-line, W wild, C occupied.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			cell := b.Cells[r][c]
			sym := string(cell.Mark)
			if cell.IsEmpty() {
				sym = "."
			}
			sb.WriteString(sym)
			sb.WriteString(annotation(cell))
			if c < b.Cols-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func annotation(c Cell) string {
	var tags []string
	if c.Lock > 0 {
		tags = append(tags, fmt.Sprintf("L%d", c.Lock))
	}
	if c.Protect > 0 {
		tags = append(tags, fmt.Sprintf("P%d", c.Protect))
	}
	if c.NoLine > 0 {
		tags = append(tags, fmt.Sprintf("N%d", c.NoLine))
	}
	if c.Wild > 0 {
		tags = append(tags, fmt.Sprintf("W%d", c.Wild))
	}
	if c.Occupy > 0 {
		tags = append(tags, fmt.Sprintf("C%d", c.Occupy))
	}
	if len(tags) == 0 {
		return ""
	}
	return "[" + strings.Join(tags, ",") + "]"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
