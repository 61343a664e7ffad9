package game

import (
	"errors"
	"fmt"
)

// Code classifies a rejected operation for clients.
type Code string

const (
	CodePlayerNotFound   Code = "PLAYER_NOT_FOUND"
	CodeNotYourTurn      Code = "NOT_YOUR_TURN"
	CodeWrongPhase       Code = "WRONG_PHASE"
	CodeGameOver         Code = "GAME_OVER"
	CodeInvalidDeck      Code = "INVALID_DECK"
	CodeDecksNotReady    Code = "DECKS_NOT_READY"
	CodeCardNotInHand    Code = "CARD_NOT_IN_HAND"
	CodeCardLimit        Code = "CARD_LIMIT"
	CodeSelectionPending Code = "SELECTION_PENDING"
	CodeNothingPending   Code = "NOTHING_PENDING"
	CodeCardFailed       Code = "CARD_FAILED"
	CodeInvalidMove      Code = "INVALID_MOVE"
	CodeInvalidState     Code = "INVALID_STATE"
)

// RuleError reports an operation rejected by the rules. The match state is
// unchanged whenever a RuleError is returned, except that a failed card
// selection clears the pending selection.
type RuleError struct {
	Code   Code
	Reason string
	Err    error
}

func (e *RuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

func ruleErr(code Code, reason string) *RuleError {
	return &RuleError{Code: code, Reason: reason}
}

func wrapRule(code Code, reason string, err error) *RuleError {
	return &RuleError{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the rule code from err, or returns "" when err is not a RuleError.
func CodeOf(err error) Code {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
