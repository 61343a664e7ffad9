// Package room hosts matches for connected players and fans out updates.
package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/game"
	"github.com/syu-y/card-tictactoe/internal/game/board"
	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/game/effects"
	"github.com/syu-y/card-tictactoe/internal/game/state"
	"github.com/syu-y/card-tictactoe/internal/protocol"
	"github.com/syu-y/card-tictactoe/internal/repository"
)

// MaxPlayers is the number of seats in a room.
const MaxPlayers = 2

var (
	ErrRoomFull           = errors.New("room is full")
	ErrRoomClosed         = errors.New("room is closed")
	ErrNotInRoom          = errors.New("player is not in this room")
	ErrNoMatch            = errors.New("waiting for an opponent")
	ErrRematchUnavailable = errors.New("rematch is only possible after a game ends")
)

// Conn is the outbound side of a player's connection. Send must not block;
// it reports false when the message was dropped.
type Conn interface {
	Send(data []byte) bool
}

type seat struct {
	playerID  string
	name      string
	conn      Conn
	deck      []int
	rematch   bool
	connected bool
	seen      bool // has connected at least once
}

// Options configures a Room.
type Options struct {
	StartDelay    time.Duration
	RecordTimeout time.Duration
	Recorder      repository.MatchRecorder
	// MatchOptions apply to every match in the room. They must not share
	// mutable state, such as a random source, with other rooms.
	MatchOptions []game.Option
	Logger       *zap.Logger
}

// Room owns two seats and the match played between them. All state is
// guarded by mu; messages are encoded and sent only after it is released.
type Room struct {
	id   string
	opts Options

	mu         sync.Mutex
	seats      [MaxPlayers]*seat
	match      *game.Match
	startTimer *time.Timer
	closed     bool
	lastActive time.Time

	logger *zap.Logger
}

// New creates an empty room.
func New(id string, opts Options) *Room {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 3 * time.Second
	}
	return &Room{
		id:         id,
		opts:       opts,
		lastActive: time.Now(),
		logger:     opts.Logger.With(zap.String("room_id", id)),
	}
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

type delivery struct {
	to  Conn
	msg protocol.Outbound
}

// outbox collects messages while the room lock is held.
type outbox []delivery

func (o *outbox) add(to Conn, msg protocol.Outbound) {
	if to != nil {
		*o = append(*o, delivery{to: to, msg: msg})
	}
}

func (r *Room) flush(out outbox) {
	for _, d := range out {
		data, err := protocol.Encode(d.msg)
		if err != nil {
			r.logger.Error("failed to encode message", zap.Error(err))
			continue
		}
		if !d.to.Send(data) {
			r.logger.Warn("outbound message dropped", zap.String("type", string(d.msg.Type)))
		}
	}
}

// broadcast queues msg for every connected seat.
func (r *Room) broadcast(out *outbox, msg protocol.Outbound) {
	for _, s := range r.seats {
		if s != nil && s.connected {
			out.add(s.conn, msg)
		}
	}
}

// sendStates queues a per-recipient view of the match for every connected seat.
func (r *Room) sendStates(out *outbox) {
	if r.match == nil {
		return
	}
	for _, s := range r.seats {
		if s == nil || !s.connected {
			continue
		}
		view, err := r.match.PlayerView(s.playerID)
		if err != nil {
			r.logger.Error("failed to build player view", zap.String("player_id", s.playerID), zap.Error(err))
			continue
		}
		out.add(s.conn, protocol.GameState(view))
	}
}

func (r *Room) seatOf(playerID string) (int, *seat) {
	for i, s := range r.seats {
		if s != nil && s.playerID == playerID {
			return i, s
		}
	}
	return -1, nil
}

func (r *Room) touch() {
	r.lastActive = time.Now()
}

// Join seats a player, or rebinds conn when playerID already holds a seat.
func (r *Room) Join(playerID, name string, conn Conn) (int, error) {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return -1, ErrRoomClosed
	}
	r.touch()

	if idx, s := r.seatOf(playerID); s != nil {
		firstTime := !s.seen
		s.conn = conn
		s.connected = true
		s.seen = true
		if name != "" {
			s.name = name
		}
		out.add(conn, protocol.RoomJoined(playerID, idx))
		if opp := r.seats[1-idx]; opp != nil {
			out.add(conn, protocol.OpponentJoined(opp.playerID, opp.name))
			switch {
			case !opp.connected:
			case firstTime:
				out.add(opp.conn, protocol.OpponentJoined(playerID, s.name))
			default:
				out.add(opp.conn, protocol.Info(s.name+" reconnected"))
			}
			if r.match == nil {
				r.newMatch()
				r.maybeStart(&out)
			}
		}
		if r.match != nil && r.match.Phase() != state.PhaseDeckSelect {
			if view, err := r.match.PlayerView(playerID); err == nil {
				out.add(conn, protocol.GameState(view))
			}
		}
		r.logger.Info("player rejoined", zap.String("player_id", playerID), zap.Int("seat", idx))
		return idx, nil
	}

	idx := -1
	for i, s := range r.seats {
		if s == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, ErrRoomFull
	}

	r.seats[idx] = &seat{playerID: playerID, name: name, conn: conn, connected: true, seen: true}
	out.add(conn, protocol.RoomJoined(playerID, idx))

	if opp := r.seats[1-idx]; opp != nil {
		out.add(conn, protocol.OpponentJoined(opp.playerID, opp.name))
		if opp.connected {
			out.add(opp.conn, protocol.OpponentJoined(playerID, name))
		}
		r.newMatch()
		r.maybeStart(&out)
	}

	r.logger.Info("player joined", zap.String("player_id", playerID), zap.Int("seat", idx))
	return idx, nil
}

// Reserve claims a seat for a player who has not connected yet.
func (r *Room) Reserve(idx int, playerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if idx < 0 || idx >= MaxPlayers || r.seats[idx] != nil {
		return ErrRoomFull
	}
	r.seats[idx] = &seat{playerID: playerID, name: name}
	r.touch()
	return nil
}

// newMatch replaces the match with a fresh one for the seated pair and
// applies any decks already submitted. Callers hold mu.
func (r *Room) newMatch() {
	r.cancelStart()
	opts := append([]game.Option{game.WithLogger(r.logger)}, r.opts.MatchOptions...)
	r.match = game.NewMatch(r.id, [2]game.Participant{
		{ID: r.seats[0].playerID, Name: r.seats[0].name},
		{ID: r.seats[1].playerID, Name: r.seats[1].name},
	}, opts...)
	for _, s := range r.seats {
		s.rematch = false
		if s.deck == nil {
			continue
		}
		if err := r.match.SetDeck(s.playerID, s.deck); err != nil {
			r.logger.Error("stored deck rejected", zap.String("player_id", s.playerID), zap.Error(err))
			s.deck = nil
		}
	}
}

// maybeStart deals and announces the game once both decks are in, then
// schedules the first state snapshot after the start delay. Callers hold mu.
func (r *Room) maybeStart(out *outbox) bool {
	if r.match == nil || !r.match.DecksReady() || r.match.Phase() != state.PhaseDeckSelect {
		return false
	}
	if err := r.match.StartGame(); err != nil {
		r.logger.Error("failed to start game", zap.Error(err))
		return false
	}
	r.broadcast(out, protocol.GameStarted())

	started := r.match
	r.startTimer = time.AfterFunc(r.opts.StartDelay, func() {
		r.announceStart(started)
	})
	return true
}

// announceStart sends the opening snapshot unless the match was replaced.
func (r *Room) announceStart(started *game.Match) {
	var out outbox
	r.mu.Lock()
	if !r.closed && r.match == started {
		r.startTimer = nil
		r.sendStates(&out)
		r.broadcast(&out, protocol.TurnStart(started.CurrentPlayerID()))
	}
	r.mu.Unlock()
	r.flush(out)
}

func (r *Room) cancelStart() {
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}
}

// SetDeck validates and stores the player's deck. The game starts when both
// players have one.
func (r *Room) SetDeck(playerID string, deck []int) error {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, s := r.seatOf(playerID)
	if s == nil {
		return ErrNotInRoom
	}
	r.touch()

	if r.match != nil && !r.match.IsOver() {
		if err := r.match.SetDeck(playerID, deck); err != nil {
			return err
		}
	} else if err := cards.ValidateDeck(deck); err != nil {
		return &game.RuleError{Code: game.CodeInvalidDeck, Reason: "invalid deck", Err: err}
	}

	s.deck = append([]int(nil), deck...)
	r.logger.Debug("deck stored", zap.String("player_id", playerID))
	r.maybeStart(&out)
	return nil
}

// Ready starts the game if both decks are already in.
func (r *Room) Ready(playerID string) error {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, s := r.seatOf(playerID); s == nil {
		return ErrNotInRoom
	}
	r.touch()
	r.maybeStart(&out)
	return nil
}

// requireMatch resolves the caller and the running match. Callers hold mu.
func (r *Room) requireMatch(playerID string) error {
	if _, s := r.seatOf(playerID); s == nil {
		return ErrNotInRoom
	}
	if r.match == nil {
		return ErrNoMatch
	}
	r.touch()
	return nil
}

// UseCard plays a card. A reveal step of a two-step card only refreshes the
// views; the card is announced once it resolves.
func (r *Room) UseCard(playerID string, cardID int, params effects.Params) error {
	var out outbox
	var rec *repository.MatchRecord
	defer func() {
		r.flush(out)
		r.record(rec)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireMatch(playerID); err != nil {
		return err
	}
	result, err := r.match.UseCard(playerID, cardID, params)
	if err != nil {
		// A failed selection clears the pending card; refresh the player's view.
		if game.CodeOf(err) == game.CodeCardFailed {
			r.sendStates(&out)
		}
		return err
	}

	if !r.match.AwaitingSelection(playerID) {
		r.broadcast(&out, protocol.CardUsed(playerID, cardID))
	}
	r.sendStates(&out)
	if result.Message != "" {
		_, s := r.seatOf(playerID)
		out.add(s.conn, protocol.Info(result.Message))
	}
	if r.match.IsOver() {
		rec = r.gameOver(&out)
	}
	return nil
}

// SkipCardPhase moves the player from the card phase to placement.
func (r *Room) SkipCardPhase(playerID string) error {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireMatch(playerID); err != nil {
		return err
	}
	if err := r.match.SkipCardPhase(playerID); err != nil {
		return err
	}
	r.sendStates(&out)
	return nil
}

// CancelCard abandons a two-step card between its steps.
func (r *Room) CancelCard(playerID string) error {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireMatch(playerID); err != nil {
		return err
	}
	if err := r.match.CancelPending(playerID); err != nil {
		return err
	}
	r.sendStates(&out)
	return nil
}

// PlaceMark places the player's mark, or passes under a forced pass.
func (r *Room) PlaceMark(playerID string, pos board.Position) error {
	var out outbox
	var rec *repository.MatchRecord
	defer func() {
		r.flush(out)
		r.record(rec)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireMatch(playerID); err != nil {
		return err
	}
	res, err := r.match.PlaceMark(playerID, pos)
	if err != nil {
		return err
	}

	_, s := r.seatOf(playerID)
	if res.Skipped {
		r.broadcast(&out, protocol.Info(s.name+" was forced to pass"))
	} else {
		r.broadcast(&out, protocol.MarkPlaced(playerID, pos))
	}
	r.sendStates(&out)
	if res.Over {
		rec = r.gameOver(&out)
		return nil
	}
	r.broadcast(&out, protocol.TurnStart(r.match.CurrentPlayerID()))
	return nil
}

// gameOver announces the result and builds the history record. Callers hold mu.
func (r *Room) gameOver(out *outbox) *repository.MatchRecord {
	winner, draw := r.match.Winner()
	r.broadcast(out, protocol.GameOver(winner, draw))

	if r.opts.Recorder == nil {
		return nil
	}
	final := r.match.Snapshot()
	if err := game.ValidateSerializationRoundtrip(final); err != nil {
		r.logger.Error("final state does not survive serialization", zap.Error(err))
		return nil
	}
	sum, err := game.ComputeChecksum(final)
	if err != nil {
		r.logger.Error("failed to checksum final state", zap.Error(err))
		return nil
	}
	return &repository.MatchRecord{
		RoomID:     r.id,
		Players:    [2]string{final.Players[0].ID, final.Players[1].ID},
		Winner:     winner,
		Draw:       draw,
		Turns:      final.TurnCount,
		BoardRows:  final.Board.Rows,
		BoardCols:  final.Board.Cols,
		Checksum:   sum.Hash,
		FinishedAt: time.Now().UTC(),
	}
}

// record stores rec in the background so the caller never waits on storage.
func (r *Room) record(rec *repository.MatchRecord) {
	if rec == nil || r.opts.Recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.RecordTimeout)
		defer cancel()
		if err := r.opts.Recorder.RecordMatch(ctx, *rec); err != nil {
			r.logger.Error("failed to record match", zap.Error(err))
		}
	}()
}

// RequestRematch registers the player's wish to play again. When both agree
// a new match starts with the stored decks.
func (r *Room) RequestRematch(playerID string) error {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireMatch(playerID); err != nil {
		return err
	}
	if !r.match.IsOver() {
		return ErrRematchUnavailable
	}

	idx, s := r.seatOf(playerID)
	s.rematch = true
	if opp := r.seats[1-idx]; opp.connected {
		out.add(opp.conn, protocol.RematchRequested(playerID))
	}
	if !r.seats[0].rematch || !r.seats[1].rematch {
		return nil
	}

	r.newMatch()
	r.broadcast(&out, protocol.RematchStarted())
	r.maybeStart(&out)
	r.logger.Info("rematch started")
	return nil
}

// Chat relays a message to both seats.
func (r *Room) Chat(playerID, text string) error {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, s := r.seatOf(playerID); s == nil {
		return ErrNotInRoom
	}
	r.touch()
	r.broadcast(&out, protocol.Chat(playerID, text))
	return nil
}

// Leave frees the player's seat and abandons any match in progress. It
// reports whether the room is now empty.
func (r *Room) Leave(playerID string) (bool, error) {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, s := r.seatOf(playerID)
	if s == nil {
		return r.emptyLocked(), ErrNotInRoom
	}
	r.touch()
	r.seats[idx] = nil
	r.cancelStart()
	r.match = nil

	if opp := r.seats[1-idx]; opp != nil {
		opp.rematch = false
		if opp.connected {
			out.add(opp.conn, protocol.OpponentLeft())
		}
	}
	r.logger.Info("player left", zap.String("player_id", playerID))
	return r.emptyLocked(), nil
}

// Disconnect marks the player's connection as gone while keeping the seat
// and match for a later rejoin. conn guards against a stale connection
// dropping a seat that was already rebound. It reports whether no seat is
// still connected.
func (r *Room) Disconnect(playerID string, conn Conn) bool {
	var out outbox
	defer func() { r.flush(out) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, s := r.seatOf(playerID)
	if s == nil || s.conn != conn {
		return r.emptyLocked()
	}
	s.conn = nil
	s.connected = false
	r.touch()

	if opp := r.seats[1-idx]; opp != nil && opp.connected {
		out.add(opp.conn, protocol.Info(s.name+" disconnected"))
	}
	r.logger.Info("player disconnected", zap.String("player_id", playerID))
	return r.emptyLocked()
}

func (r *Room) emptyLocked() bool {
	for _, s := range r.seats {
		if s != nil && s.connected {
			return false
		}
	}
	return true
}

// closeIfIdle closes the room when no seat is connected and it has been
// inactive for at least grace.
func (r *Room) closeIfIdle(grace time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return true
	}
	if !r.emptyLocked() || time.Since(r.lastActive) < grace {
		return false
	}
	r.closed = true
	r.cancelStart()
	return true
}

// Close stops the room. It is safe to call more than once.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cancelStart()
}

// Info is a point-in-time summary of a room.
type Info struct {
	ID        string   `json:"id"`
	Players   []string `json:"players"`
	Connected int      `json:"connected"`
	Phase     string   `json:"phase"`
	Turn      int      `json:"turn"`
}

// Info returns a summary of the room.
func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := Info{ID: r.id, Players: make([]string, 0, MaxPlayers), Phase: "WAITING"}
	for _, s := range r.seats {
		if s == nil {
			continue
		}
		info.Players = append(info.Players, s.playerID)
		if s.connected {
			info.Connected++
		}
	}
	if r.match != nil {
		info.Phase = r.match.Phase().String()
		info.Turn = r.match.TurnCount()
	}
	return info
}
