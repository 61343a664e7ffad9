package effects

import (
	"fmt"
	"sort"

	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/game/state"
)

func applyLineBreak(t *target, _ Params) (Outcome, error) {
	t.gs.LineBreak = LineBreakChecks
	return Outcome{Message: "next win check is void"}, nil
}

func applyForcedPass(t *target, _ Params) (Outcome, error) {
	t.opponent.SkipNextPlace = true
	return Outcome{Message: "opponent skips the next placement"}, nil
}

func applyCostReduction(t *target, _ Params) (Outcome, error) {
	t.player.IgnoreCardLimit = true
	return Outcome{Message: "card limit lifted for this turn"}, nil
}

// applyDraw draws n cards.
func applyDraw(n int) func(t *target, p Params) (Outcome, error) {
	return func(t *target, _ Params) (Outcome, error) {
		if len(t.player.Deck) == 0 {
			return Outcome{}, ErrEmptyDeck
		}
		drawn := t.player.Draw(n)
		return cardsChanged(fmt.Sprintf("drew %d card(s)", drawn)), nil
	}
}

// applyReroll discards up to two hand cards by index, then draws as many.
// The reroll card itself may not be named.
func applyReroll(t *target, p Params) (Outcome, error) {
	if len(p.DiscardIndices) > MaxRerollCards {
		return Outcome{}, fmt.Errorf("at most %d cards may be discarded: %w", MaxRerollCards, ErrBadHandIndex)
	}
	if len(t.player.Deck) == 0 {
		return Outcome{}, ErrEmptyDeck
	}
	played := t.player.HandIndex(t.cardID)
	indices := append([]int(nil), p.DiscardIndices...)
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for i, idx := range indices {
		if idx < 0 || idx >= len(t.player.Hand) || idx == played {
			return Outcome{}, fmt.Errorf("index %d: %w", idx, ErrBadHandIndex)
		}
		if i > 0 && idx == indices[i-1] {
			return Outcome{}, fmt.Errorf("index %d named twice: %w", idx, ErrBadHandIndex)
		}
	}

	hand := t.player.Hand
	for _, idx := range indices {
		t.player.Discard = append(t.player.Discard, hand[idx])
		hand = append(hand[:idx], hand[idx+1:]...)
	}
	t.player.Hand = hand

	drawn := t.player.Draw(len(indices))
	return cardsChanged(fmt.Sprintf("rerolled %d card(s)", drawn)), nil
}

// applyReclaim returns the most recently discarded card to the hand.
func applyReclaim(t *target, _ Params) (Outcome, error) {
	if len(t.player.Discard) == 0 {
		return Outcome{}, ErrEmptyDiscard
	}
	if t.player.HandFull() {
		return Outcome{}, ErrHandFull
	}
	last := len(t.player.Discard) - 1
	id := t.player.Discard[last]
	t.player.Discard = t.player.Discard[:last]
	t.player.Hand = append(t.player.Hand, id)
	return cardsChanged(fmt.Sprintf("reclaimed %s", cards.Name(id))), nil
}

// applySearch reveals up to five deck cards of a category, then takes the
// selected one on the second call.
func applySearch(t *target, p Params) (Outcome, error) {
	if t.player.Pending.Awaiting() {
		return selectCandidate(t, p, 0)
	}
	if !p.Category.Valid() {
		return Outcome{}, fmt.Errorf("category %q: %w", p.Category, ErrBadCategory)
	}
	var candidates []int
	for _, id := range t.player.Deck {
		if cards.InCategory(id, p.Category) {
			candidates = append(candidates, id)
			if len(candidates) == SearchCandidates {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return Outcome{}, ErrNoCandidates
	}
	t.player.Pending = state.AwaitSelection(t.cardID, candidates)
	return cardsChanged(fmt.Sprintf("%d candidate(s) found", len(candidates))), nil
}

// applyForesee reveals the top three deck cards, then takes the selected one
// if it is still among them.
func applyForesee(t *target, p Params) (Outcome, error) {
	if t.player.Pending.Awaiting() {
		return selectCandidate(t, p, ForeseeDepth)
	}
	if len(t.player.Deck) == 0 {
		return Outcome{}, ErrEmptyDeck
	}
	depth := min(ForeseeDepth, len(t.player.Deck))
	t.player.Pending = state.AwaitSelection(t.cardID, t.player.Deck[:depth])
	return cardsChanged(fmt.Sprintf("revealed top %d card(s)", depth)), nil
}

func selectCandidate(t *target, p Params, depth int) (Outcome, error) {
	pending := t.player.Pending
	if pending.CardID != t.cardID {
		return Outcome{}, ErrSelectionRequired
	}
	if p.SelectedCardID == 0 {
		return Outcome{}, fmt.Errorf("selectedCardId: %w", ErrMissingParams)
	}
	if !pending.Offers(p.SelectedCardID) || !t.player.TakeFromDeck(p.SelectedCardID, depth) {
		return Outcome{}, fmt.Errorf("card %d: %w", p.SelectedCardID, ErrInvalidSelection)
	}
	t.player.Receive(p.SelectedCardID)
	t.player.Pending = state.Idle()
	return cardsChanged(fmt.Sprintf("added %s", cards.Name(p.SelectedCardID))), nil
}
