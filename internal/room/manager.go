package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/game"
	"github.com/syu-y/card-tictactoe/internal/protocol"
)

// QuickMatchPrefix prefixes the ids of rooms created by quick match.
const QuickMatchPrefix = "match_"

const joinAttempts = 3

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Room Options
	// MatchOptions, when set, is called once per room to build options for
	// its matches.
	MatchOptions func() []game.Option
	// IdleRoomTTL is how long a room with no connected seat survives a sweep.
	IdleRoomTTL time.Duration
	// NewRoomID names quick match rooms. Defaults to QuickMatchPrefix plus a
	// random UUID.
	NewRoomID func() string
}

type waiting struct {
	playerID string
	name     string
	conn     Conn
}

// Manager manages rooms and the quick match queue.
type Manager struct {
	rooms map[string]*Room
	mu    sync.RWMutex

	queue   []waiting
	queueMu sync.Mutex

	opts   ManagerOptions
	logger *zap.Logger
}

// NewManager creates a room manager.
func NewManager(opts ManagerOptions, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Room.Logger = logger
	if opts.NewRoomID == nil {
		opts.NewRoomID = func() string { return QuickMatchPrefix + uuid.New().String() }
	}
	return &Manager{
		rooms:  make(map[string]*Room),
		opts:   opts,
		logger: logger,
	}
}

// GetOrCreate returns the room with id, creating it if needed.
func (m *Manager) GetOrCreate(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[roomID]; ok {
		return r
	}
	opts := m.opts.Room
	if m.opts.MatchOptions != nil {
		opts.MatchOptions = m.opts.MatchOptions()
	}
	r := New(roomID, opts)
	m.rooms[roomID] = r
	m.logger.Info("room created", zap.String("room_id", roomID))
	return r
}

// Get retrieves a room by id.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID]
	return r, ok
}

// Join seats a player in roomID, creating the room if needed. A room closed
// by a concurrent removal is replaced by a fresh one.
func (m *Manager) Join(roomID, playerID, name string, conn Conn) (*Room, int, error) {
	for attempt := 0; attempt < joinAttempts; attempt++ {
		r := m.GetOrCreate(roomID)
		idx, err := r.Join(playerID, name, conn)
		if errors.Is(err, ErrRoomClosed) {
			m.forget(roomID, r)
			continue
		}
		if err != nil {
			return nil, -1, err
		}
		return r, idx, nil
	}
	return nil, -1, ErrRoomClosed
}

// forget drops r from the index if it is still the room registered for id.
func (m *Manager) forget(roomID string, r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[roomID] == r {
		delete(m.rooms, roomID)
	}
}

// Remove deletes the room if no seat is connected. It returns whether the
// room is gone and may be called any number of times.
func (m *Manager) Remove(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return true
	}
	if !r.closeIfIdle(0) {
		return false
	}
	delete(m.rooms, roomID)
	m.logger.Info("room removed", zap.String("room_id", roomID))
	return true
}

// SweepIdle removes idle rooms every interval until ctx is done.
func (m *Manager) SweepIdle(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("idle rooms swept", zap.Int("removed", n), zap.Int("remaining", m.Count()))
			}
		}
	}
}

// Sweep removes every room that has had no connected seat for the idle TTL.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, r := range m.rooms {
		if r.closeIfIdle(m.opts.IdleRoomTTL) {
			delete(m.rooms, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// IDs returns all room ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Infos returns a summary of every room, sorted by id.
func (m *Manager) Infos() []Info {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// CloseAll closes and forgets every room.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.rooms {
		r.Close()
		delete(m.rooms, id)
	}
}

// Enqueue puts a player in the quick match queue. When another player is
// waiting, both get a seat in a new room and a MATCH_FOUND message; the
// player who waited longer plays first. It returns the new room id, or ""
// when the player is left waiting.
func (m *Manager) Enqueue(playerID, name string, conn Conn) (string, error) {
	m.queueMu.Lock()
	m.removeQueued(func(w waiting) bool { return w.playerID == playerID })

	var first waiting
	found := false
	for len(m.queue) > 0 && !found {
		first, m.queue = m.queue[0], m.queue[1:]
		found = first.conn != conn
	}
	if !found {
		m.queue = append(m.queue, waiting{playerID: playerID, name: name, conn: conn})
		m.queueMu.Unlock()
		m.logger.Debug("player queued for quick match", zap.String("player_id", playerID))
		return "", nil
	}
	m.queueMu.Unlock()

	roomID := m.opts.NewRoomID()
	r := m.GetOrCreate(roomID)
	err := r.Reserve(0, first.playerID, first.name)
	if err == nil {
		err = r.Reserve(1, playerID, name)
	}
	if err != nil {
		m.forget(roomID, r)
		r.Close()
		m.requeue(first)
		m.logger.Warn("quick match room unavailable",
			zap.String("room_id", roomID),
			zap.String("waiting_player", first.playerID),
			zap.Error(err),
		)
		return "", err
	}

	m.notify(first.conn, protocol.MatchFound(roomID, 0))
	m.notify(conn, protocol.MatchFound(roomID, 1))
	m.logger.Info("quick match paired",
		zap.String("room_id", roomID),
		zap.String("first_player", first.playerID),
		zap.String("second_player", playerID),
	)
	return roomID, nil
}

// requeue puts w back at the head of the queue unless it left meanwhile.
func (m *Manager) requeue(w waiting) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	for _, q := range m.queue {
		if q.conn == w.conn || q.playerID == w.playerID {
			return
		}
	}
	m.queue = append([]waiting{w}, m.queue...)
}

// Dequeue removes every queue entry bound to conn.
func (m *Manager) Dequeue(conn Conn) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	m.removeQueued(func(w waiting) bool { return w.conn == conn })
}

// QueueLen returns the number of waiting players.
func (m *Manager) QueueLen() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return len(m.queue)
}

func (m *Manager) removeQueued(match func(waiting) bool) {
	kept := m.queue[:0]
	for _, w := range m.queue {
		if !match(w) {
			kept = append(kept, w)
		}
	}
	m.queue = kept
}

func (m *Manager) notify(conn Conn, msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Error("failed to encode message", zap.Error(err))
		return
	}
	conn.Send(data)
}
