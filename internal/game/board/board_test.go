package board

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(r, c int) Position { return Position{Row: r, Col: c} }

func TestNewBoardIsEmpty(t *testing.T) {
	b := New()
	assert.Equal(t, 3, b.Rows)
	assert.Equal(t, 3, b.Cols)
	assert.Empty(t, b.MarkPositions())
	for _, row := range b.Cells {
		for _, cell := range row {
			assert.Equal(t, EmptyCell(), cell)
		}
	}
}

func TestPlaceMark(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(1, 1), MarkO))

	assert.ErrorIs(t, b.PlaceMark(pos(1, 1), MarkX), ErrCellOccupied)
	assert.ErrorIs(t, b.PlaceMark(pos(3, 0), MarkX), ErrOutOfRange)
	assert.ErrorIs(t, b.PlaceMark(pos(-1, 0), MarkX), ErrOutOfRange)

	require.NoError(t, b.SetCellState(pos(0, 0), TimerPatch{Lock: Turns(2)}))
	assert.ErrorIs(t, b.PlaceMark(pos(0, 0), MarkX), ErrCellLocked)

	require.NoError(t, b.SetCellState(pos(0, 1), TimerPatch{Occupy: Turns(2), OccupyOwner: Turns(0)}))
	assert.ErrorIs(t, b.PlaceMark(pos(0, 1), MarkX), ErrOccupiedByOther)
	assert.NoError(t, b.PlaceMark(pos(0, 1), MarkO), "owner may place on its own occupied cell")
}

func TestExpandShrinkBounds(t *testing.T) {
	b := New()
	for i := 0; i < MaxSize-InitialSize; i++ {
		require.NoError(t, b.Expand(AxisRow, DirDown))
		require.NoError(t, b.Expand(AxisCol, DirLeft))
	}
	assert.Equal(t, MaxSize, b.Rows)
	assert.Equal(t, MaxSize, b.Cols)
	assert.ErrorIs(t, b.Expand(AxisRow, DirUp), ErrMaxSize)
	assert.ErrorIs(t, b.Expand(AxisCol, DirRight), ErrMaxSize)

	for i := 0; i < MaxSize-MinSize; i++ {
		require.NoError(t, b.Shrink(AxisRow, DirUp))
		require.NoError(t, b.Shrink(AxisCol, DirRight))
	}
	assert.Equal(t, MinSize, b.Rows)
	assert.Equal(t, MinSize, b.Cols)
	assert.ErrorIs(t, b.Shrink(AxisRow, DirDown), ErrMinSize)
	assert.ErrorIs(t, b.Shrink(AxisCol, DirLeft), ErrMinSize)
}

func TestExpandSequenceStaysInBounds(t *testing.T) {
	ops := []struct {
		expand bool
		axis   Axis
		dir    Direction
	}{
		{true, AxisRow, DirUp}, {true, AxisRow, DirUp}, {false, AxisRow, DirDown},
		{true, AxisCol, DirRight}, {false, AxisCol, DirLeft}, {false, AxisCol, DirLeft},
		{false, AxisCol, DirLeft}, {true, AxisRow, DirDown}, {true, AxisRow, DirDown},
		{true, AxisRow, DirDown}, {true, AxisRow, DirDown}, {true, AxisRow, DirDown},
	}
	b := New()
	for _, op := range ops {
		if op.expand {
			_ = b.Expand(op.axis, op.dir)
		} else {
			_ = b.Shrink(op.axis, op.dir)
		}
		assert.GreaterOrEqual(t, b.Rows, MinSize)
		assert.LessOrEqual(t, b.Rows, MaxSize)
		assert.GreaterOrEqual(t, b.Cols, MinSize)
		assert.LessOrEqual(t, b.Cols, MaxSize)
		assert.Len(t, b.Cells, b.Rows)
		for _, row := range b.Cells {
			assert.Len(t, row, b.Cols)
		}
	}
}

func TestExpandKeepsMarksInPlace(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))
	require.NoError(t, b.Expand(AxisRow, DirUp))
	require.NoError(t, b.Expand(AxisCol, DirLeft))

	assert.Equal(t, []Position{pos(1, 1)}, b.MarkPositions())
}

func TestShrinkRejectsMarkedEdge(t *testing.T) {
	b := New()
	require.NoError(t, b.Expand(AxisRow, DirDown))
	require.NoError(t, b.PlaceMark(pos(3, 2), MarkX))

	assert.ErrorIs(t, b.Shrink(AxisRow, DirDown), ErrEdgeNotEmpty)
	assert.Equal(t, 4, b.Rows)
	require.NoError(t, b.Shrink(AxisRow, DirUp))
	assert.Equal(t, []Position{pos(2, 2)}, b.MarkPositions())
}

func TestExpandRejectsMismatchedDirection(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.Expand(AxisRow, DirLeft), ErrBadDirection)
	assert.ErrorIs(t, b.Shrink(AxisCol, DirUp), ErrBadDirection)
	assert.ErrorIs(t, b.Expand(Axis("DIAG"), DirUp), ErrBadAxis)
}

func TestPushRow(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))
	require.NoError(t, b.PlaceMark(pos(0, 2), MarkX))

	require.NoError(t, b.Push(AxisRow, 0, DirRight))
	assert.Equal(t, MarkEmpty, b.Cells[0][0].Mark)
	assert.Equal(t, MarkO, b.Cells[0][1].Mark)
	assert.Equal(t, MarkEmpty, b.Cells[0][2].Mark, "far cell is discarded")

	require.NoError(t, b.Push(AxisRow, 0, DirLeft))
	assert.Equal(t, MarkO, b.Cells[0][0].Mark)
	assert.Equal(t, []Position{pos(0, 0)}, b.MarkPositions())
}

func TestPushColumnCarriesTimers(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(1, 1), MarkX))
	require.NoError(t, b.SetCellState(pos(1, 1), TimerPatch{Protect: Turns(2)}))

	require.NoError(t, b.Push(AxisCol, 1, DirDown))
	assert.Equal(t, MarkX, b.Cells[2][1].Mark)
	assert.Equal(t, 2, b.Cells[2][1].Protect)
	assert.Equal(t, EmptyCell(), b.Cells[0][1])

	require.NoError(t, b.Push(AxisCol, 1, DirUp))
	assert.Equal(t, MarkX, b.Cells[1][1].Mark)
	assert.Equal(t, EmptyCell(), b.Cells[2][1])
}

func TestPushValidation(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.Push(AxisRow, 3, DirLeft), ErrBadIndex)
	assert.ErrorIs(t, b.Push(AxisCol, -1, DirUp), ErrBadIndex)
	assert.ErrorIs(t, b.Push(AxisRow, 0, DirUp), ErrBadDirection)
	assert.ErrorIs(t, b.Push(AxisCol, 0, DirRight), ErrBadDirection)
}

func TestMoveMark(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(b *Board)
		from, to Position
		adjacent bool
		wantErr  error
	}{
		{"adjacent slide", func(b *Board) { _ = b.PlaceMark(pos(0, 0), MarkO) }, pos(0, 0), pos(0, 1), true, nil},
		{"teleport anywhere", func(b *Board) { _ = b.PlaceMark(pos(0, 0), MarkO) }, pos(0, 0), pos(2, 2), false, nil},
		{"slide too far", func(b *Board) { _ = b.PlaceMark(pos(0, 0), MarkO) }, pos(0, 0), pos(2, 2), true, ErrNotAdjacent},
		{"diagonal is not adjacent", func(b *Board) { _ = b.PlaceMark(pos(0, 0), MarkO) }, pos(0, 0), pos(1, 1), true, ErrNotAdjacent},
		{"empty source", func(b *Board) {}, pos(0, 0), pos(0, 1), false, ErrCellEmpty},
		{"occupied destination", func(b *Board) {
			_ = b.PlaceMark(pos(0, 0), MarkO)
			_ = b.PlaceMark(pos(0, 1), MarkX)
		}, pos(0, 0), pos(0, 1), false, ErrCellOccupied},
		{"protected source", func(b *Board) {
			_ = b.PlaceMark(pos(0, 0), MarkO)
			_ = b.SetCellState(pos(0, 0), TimerPatch{Protect: Turns(1)})
		}, pos(0, 0), pos(0, 1), false, ErrCellProtected},
		{"locked destination", func(b *Board) {
			_ = b.PlaceMark(pos(0, 0), MarkO)
			_ = b.SetCellState(pos(0, 1), TimerPatch{Lock: Turns(1)})
		}, pos(0, 0), pos(0, 1), false, ErrCellLocked},
		{"protected destination", func(b *Board) {
			_ = b.PlaceMark(pos(0, 0), MarkO)
			_ = b.SetCellState(pos(0, 1), TimerPatch{Protect: Turns(1)})
		}, pos(0, 0), pos(0, 1), false, ErrCellProtected},
		{"out of range", func(b *Board) { _ = b.PlaceMark(pos(0, 0), MarkO) }, pos(0, 0), pos(0, 3), false, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			tt.setup(b)
			before := b.Clone()
			err := b.MoveMark(tt.from, tt.to, tt.adjacent)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, b, "failed move must not mutate the board")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, MarkEmpty, b.Cells[tt.from.Row][tt.from.Col].Mark)
			assert.Equal(t, before.Cells[tt.from.Row][tt.from.Col].Mark, b.Cells[tt.to.Row][tt.to.Col].Mark)
		})
	}
}

func TestCopyMark(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))

	assert.ErrorIs(t, b.CopyMark(pos(0, 0), pos(1, 1)), ErrNotInLine)

	require.NoError(t, b.CopyMark(pos(0, 0), pos(0, 2)))
	assert.Equal(t, MarkO, b.Cells[0][0].Mark, "source keeps its mark")
	assert.Equal(t, MarkO, b.Cells[0][2].Mark)
	assert.Equal(t, CopyLockTurns, b.Cells[0][0].Lock)
}

func TestFlipMark(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.FlipMark(pos(0, 0), 0), ErrCellEmpty)

	require.NoError(t, b.PlaceMark(pos(0, 0), MarkX))
	require.NoError(t, b.FlipMark(pos(0, 0), 0))
	assert.Equal(t, MarkO, b.Cells[0][0].Mark)

	require.NoError(t, b.SetCellState(pos(0, 0), TimerPatch{Occupy: Turns(2), OccupyOwner: Turns(1)}))
	assert.ErrorIs(t, b.FlipMark(pos(0, 0), 0), ErrOccupiedByOther)

	require.NoError(t, b.SetCellState(pos(0, 0), TimerPatch{Occupy: Turns(0), Protect: Turns(1)}))
	assert.ErrorIs(t, b.FlipMark(pos(0, 0), 0), ErrCellProtected)
}

func TestSwapMarks(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))
	require.NoError(t, b.PlaceMark(pos(2, 2), MarkX))

	assert.ErrorIs(t, b.SwapMarks(pos(0, 0), pos(1, 1), 0), ErrCellEmpty)

	owner := 1
	require.NoError(t, b.SetCellState(pos(2, 2), TimerPatch{Occupy: Turns(2), OccupyOwner: &owner}))
	require.NoError(t, b.SwapMarks(pos(0, 0), pos(2, 2), 0), "one opponent-occupied cell is allowed")
	assert.Equal(t, MarkX, b.Cells[0][0].Mark)
	assert.Equal(t, MarkO, b.Cells[2][2].Mark)

	require.NoError(t, b.SetCellState(pos(0, 0), TimerPatch{Occupy: Turns(2), OccupyOwner: &owner}))
	assert.ErrorIs(t, b.SwapMarks(pos(0, 0), pos(2, 2), 0), ErrOccupiedByOther)

	require.NoError(t, b.SetCellState(pos(0, 0), TimerPatch{Occupy: Turns(0), Protect: Turns(1)}))
	assert.ErrorIs(t, b.SwapMarks(pos(0, 0), pos(2, 2), 0), ErrCellProtected)
}

func TestDecrementTimers(t *testing.T) {
	b := New()
	owner := 0
	require.NoError(t, b.SetCellState(pos(1, 1), TimerPatch{
		Lock: Turns(2), Protect: Turns(1), NoLine: Turns(3), Wild: Turns(1), Occupy: Turns(1), OccupyOwner: &owner,
	}))

	b.DecrementTimers()
	cell, ok := b.Cell(pos(1, 1))
	require.True(t, ok)
	assert.Equal(t, 1, cell.Lock)
	assert.Equal(t, 0, cell.Protect)
	assert.Equal(t, 2, cell.NoLine)
	assert.Equal(t, 0, cell.Wild)
	assert.Equal(t, 0, cell.Occupy)
	assert.Equal(t, NoOwner, cell.OccupyOwner, "owner is dropped once occupy expires")

	b.DecrementTimers()
	b.DecrementTimers()
	b.DecrementTimers()
	cell, _ = b.Cell(pos(1, 1))
	assert.Equal(t, EmptyCell(), cell, "timers floor at zero")
}

func TestDecrementTimersIdempotentOnZeroBoard(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))
	before := b.Clone()
	b.DecrementTimers()
	assert.Equal(t, before, b)
}

func TestCloneDoesNotAlias(t *testing.T) {
	b := New()
	c := b.Clone()
	require.NoError(t, c.PlaceMark(pos(0, 0), MarkO))
	require.NoError(t, c.Expand(AxisRow, DirDown))

	assert.Equal(t, MarkEmpty, b.Cells[0][0].Mark)
	assert.Equal(t, 3, b.Rows)
}

func TestBoardJSONRoundTrip(t *testing.T) {
	b := New()
	require.NoError(t, b.Expand(AxisCol, DirRight))
	require.NoError(t, b.PlaceMark(pos(0, 3), MarkX))
	require.NoError(t, b.SetCellState(pos(2, 1), TimerPatch{Wild: Turns(1), NoLine: Turns(2)}))

	first, err := json.Marshal(b)
	require.NoError(t, err)

	var restored Board
	require.NoError(t, json.Unmarshal(first, &restored))
	second, err := json.Marshal(&restored)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, b, &restored)
}

func TestMarkPositionsFilter(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))
	require.NoError(t, b.PlaceMark(pos(1, 1), MarkX))
	require.NoError(t, b.PlaceMark(pos(2, 2), MarkO))

	assert.Len(t, b.MarkPositions(), 3)
	assert.Equal(t, []Position{pos(0, 0), pos(2, 2)}, b.MarkPositions(MarkO))
	assert.Equal(t, []Position{pos(1, 1)}, b.MarkPositions(MarkX))
}

func TestStringAnnotatesTimers(t *testing.T) {
	b := New()
	require.NoError(t, b.PlaceMark(pos(0, 0), MarkO))
	require.NoError(t, b.SetCellState(pos(0, 1), TimerPatch{Lock: Turns(2)}))

	assert.Equal(t, "O .[L2] .\n. . .\n. . .\n", b.String())
}
