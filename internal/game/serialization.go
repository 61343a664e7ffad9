package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/syu-y/card-tictactoe/internal/game/state"
)

// checksumVersion changes whenever the canonical representation changes.
const checksumVersion = 1

// SerializationChecksum is a deterministic digest of a game state. Two
// states with equal checksums are equal in every rule-relevant field.
type SerializationChecksum struct {
	Hash    string // SHA-256 of the canonical representation
	Version int
}

// ComputeChecksum digests the current match state.
func (m *Match) ComputeChecksum() (*SerializationChecksum, error) {
	return ComputeChecksum(m.state)
}

// ComputeChecksum digests gs.
func ComputeChecksum(gs *state.GameState) (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(canonical(gs))); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: checksumVersion,
	}, nil
}

// canonical renders gs as text with a fixed field order. Card sequences
// keep their order because order is part of the game.
func canonical(gs *state.GameState) string {
	var buf bytes.Buffer

	line := ""
	if gs.WinningLine != nil {
		line = fmt.Sprintf("%s%v", gs.WinningLine.Kind, gs.WinningLine.Positions)
	}
	fmt.Fprintf(&buf, "GAME:%s|%s|%d|%d|%d|%t|%s|%t|%s\n",
		gs.RoomID,
		gs.Phase,
		gs.CurrentPlayer,
		gs.TurnCount,
		gs.LineBreak,
		gs.CardUsedThisTurn,
		gs.Winner,
		gs.Draw,
		line,
	)

	for i, p := range gs.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%s|%s|%t|%t|%t|%t\n",
			i, p.ID, p.Name, p.Mark, p.DeckSet, p.SkipNextPlace, p.IgnoreCardLimit, p.NoMoreCardThisTurn)
		fmt.Fprintf(&buf, "  DECK:%v\n", p.Deck)
		fmt.Fprintf(&buf, "  HAND:%v\n", p.Hand)
		fmt.Fprintf(&buf, "  DISCARD:%v\n", p.Discard)
		fmt.Fprintf(&buf, "  PENDING:%s|%d|%v\n", p.Pending.State, p.Pending.CardID, p.Pending.Candidates)
	}

	if gs.Board != nil {
		fmt.Fprintf(&buf, "BOARD:%dx%d\n", gs.Board.Rows, gs.Board.Cols)
		for r, row := range gs.Board.Cells {
			for c, cell := range row {
				fmt.Fprintf(&buf, "  CELL:%d,%d|%s|%d|%d|%d|%d|%d|%d\n",
					r, c, cell.Mark, cell.Lock, cell.Protect, cell.NoLine, cell.Wild, cell.Occupy, cell.OccupyOwner)
			}
		}
	}

	return buf.String()
}

// VerifyChecksum reports whether gs still matches expected.
func VerifyChecksum(gs *state.GameState, expected *SerializationChecksum) (bool, error) {
	computed, err := ComputeChecksum(gs)
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// MarshalState encodes gs as JSON, the format used on the wire and in storage.
func MarshalState(gs *state.GameState) ([]byte, error) {
	data, err := json.Marshal(gs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// UnmarshalState decodes a state produced by MarshalState.
func UnmarshalState(data []byte) (*state.GameState, error) {
	var gs state.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if gs.Board == nil {
		return nil, fmt.Errorf("failed to decode state: missing board")
	}
	return &gs, nil
}

// ValidateSerializationRoundtrip encodes and decodes gs and compares checksums.
func ValidateSerializationRoundtrip(gs *state.GameState) error {
	original, err := ComputeChecksum(gs)
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := MarshalState(gs)
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}

	decoded, err := UnmarshalState(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	ok, err := VerifyChecksum(decoded, original)
	if err != nil {
		return fmt.Errorf("failed to verify deserialized state: %w", err)
	}
	if !ok {
		return fmt.Errorf("checksum mismatch after round trip: original=%s", original.Hash)
	}
	return nil
}
