// Package protocol defines the JSON envelopes exchanged with game clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syu-y/card-tictactoe/internal/game/board"
	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/game/effects"
	"github.com/syu-y/card-tictactoe/internal/game/state"
)

// Type is the envelope discriminator.
type Type string

// Client to server.
const (
	TypeJoinRoom       Type = "JOIN_ROOM"
	TypeQuickStart     Type = "QUICKSTART"
	TypeSetDeck        Type = "SET_DECK"
	TypeReady          Type = "READY"
	TypeUseCard        Type = "USE_CARD"
	TypePlaceMark      Type = "PLACE_MARK"
	TypeEndTurn        Type = "END_TURN"
	TypeCancelCard     Type = "CANCEL_CARD"
	TypeLeaveRoom      Type = "LEAVE_ROOM"
	TypeRematchRequest Type = "REMATCH_REQUEST"
	TypeChat           Type = "CHAT"
)

// Server to client. CHAT is shared with the inbound set.
const (
	TypeRoomJoined       Type = "ROOM_JOINED"
	TypeOpponentJoined   Type = "OPPONENT_JOINED"
	TypeGameState        Type = "GAME_STATE"
	TypeGameStarted      Type = "GAME_STARTED"
	TypeTurnStart        Type = "TURN_START"
	TypeCardUsed         Type = "CARD_USED"
	TypeMarkPlaced       Type = "MARK_PLACED"
	TypeGameOver         Type = "GAME_OVER"
	TypeError            Type = "ERROR"
	TypeInfo             Type = "INFO"
	TypeOpponentLeft     Type = "OPPONENT_LEFT"
	TypeMatchFound       Type = "MATCH_FOUND"
	TypeRematchRequested Type = "REMATCH_REQUESTED"
	TypeRematchStarted   Type = "REMATCH_STARTED"
)

// Error codes for structural failures. Rule violations carry the game's codes.
const (
	CodeMalformed   = "MALFORMED_MESSAGE"
	CodeUnknownType = "UNKNOWN_TYPE"
	CodeNotInRoom   = "NOT_IN_ROOM"
	CodeRoomFull    = "ROOM_FULL"
	CodeNoMatch     = "NO_MATCH"
	CodeInternal    = "INTERNAL_ERROR"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
)

// Inbound is a decoded client message. Only the fields relevant to Type are set.
type Inbound struct {
	Type       Type            `json:"type"`
	RoomID     string          `json:"roomId,omitempty"`
	PlayerID   string          `json:"playerId,omitempty"`
	PlayerName string          `json:"playerName,omitempty"`
	Deck       []int           `json:"deck,omitempty"`
	CardID     int             `json:"cardId,omitempty"`
	Params     effects.Params  `json:"params"`
	Position   *board.Position `json:"position,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Decode parses and validates one client message.
func Decode(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *Inbound) validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%s %s: %w", in.Type, field, ErrMissingField)
	}
	switch in.Type {
	case TypeJoinRoom:
		if in.RoomID == "" {
			return missing("roomId")
		}
		if in.PlayerID == "" {
			return missing("playerId")
		}
	case TypeQuickStart:
		if in.PlayerID == "" {
			return missing("playerId")
		}
	case TypeSetDeck:
		if len(in.Deck) == 0 {
			return missing("deck")
		}
	case TypeUseCard:
		if in.CardID == 0 {
			return missing("cardId")
		}
	case TypePlaceMark:
		if in.Position == nil {
			return missing("position")
		}
	case TypeChat:
		if in.Message == "" {
			return missing("message")
		}
	case TypeReady, TypeEndTurn, TypeCancelCard, TypeLeaveRoom, TypeRematchRequest:
	case "":
		return fmt.Errorf("%w: no type", ErrMalformed)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	return nil
}

// Outbound is a server message. Constructors below set the fields each type uses.
type Outbound struct {
	Type         Type             `json:"type"`
	PlayerID     string           `json:"playerId,omitempty"`
	PlayerIndex  *int             `json:"playerIndex,omitempty"`
	OpponentID   string           `json:"opponentId,omitempty"`
	OpponentName string           `json:"opponentName,omitempty"`
	RoomID       string           `json:"roomId,omitempty"`
	State        *state.GameState `json:"state,omitempty"`
	CardID       int              `json:"cardId,omitempty"`
	CardName     string           `json:"cardName,omitempty"`
	Position     *board.Position  `json:"position,omitempty"`
	Winner       string           `json:"winner,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Message      string           `json:"message,omitempty"`
	Code         string           `json:"code,omitempty"`
}

// Encode renders msg as JSON.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Type, err)
	}
	return data, nil
}

func RoomJoined(playerID string, seat int) Outbound {
	return Outbound{Type: TypeRoomJoined, PlayerID: playerID, PlayerIndex: &seat}
}

func OpponentJoined(opponentID, opponentName string) Outbound {
	return Outbound{Type: TypeOpponentJoined, OpponentID: opponentID, OpponentName: opponentName}
}

// GameState carries a per-recipient view of the match.
func GameState(view *state.GameState) Outbound {
	return Outbound{Type: TypeGameState, State: view}
}

func GameStarted() Outbound {
	return Outbound{Type: TypeGameStarted}
}

func TurnStart(playerID string) Outbound {
	return Outbound{Type: TypeTurnStart, PlayerID: playerID}
}

func CardUsed(playerID string, cardID int) Outbound {
	return Outbound{Type: TypeCardUsed, PlayerID: playerID, CardID: cardID, CardName: cards.Name(cardID)}
}

func MarkPlaced(playerID string, pos board.Position) Outbound {
	return Outbound{Type: TypeMarkPlaced, PlayerID: playerID, Position: &pos}
}

// GameOver reports the winner, or "draw" as both winner and reason.
func GameOver(winner string, draw bool) Outbound {
	if draw || winner == "" {
		return Outbound{Type: TypeGameOver, Winner: "draw", Reason: "draw"}
	}
	return Outbound{Type: TypeGameOver, Winner: winner, Reason: "win"}
}

func Error(message, code string) Outbound {
	return Outbound{Type: TypeError, Message: message, Code: code}
}

func Info(message string) Outbound {
	return Outbound{Type: TypeInfo, Message: message}
}

func OpponentLeft() Outbound {
	return Outbound{Type: TypeOpponentLeft}
}

func Chat(playerID, message string) Outbound {
	return Outbound{Type: TypeChat, PlayerID: playerID, Message: message}
}

func MatchFound(roomID string, seat int) Outbound {
	return Outbound{Type: TypeMatchFound, RoomID: roomID, PlayerIndex: &seat}
}

func RematchRequested(playerID string) Outbound {
	return Outbound{Type: TypeRematchRequested, PlayerID: playerID}
}

func RematchStarted() Outbound {
	return Outbound{Type: TypeRematchStarted}
}
