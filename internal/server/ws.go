package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/config"
	"github.com/syu-y/card-tictactoe/internal/game"
	"github.com/syu-y/card-tictactoe/internal/protocol"
	"github.com/syu-y/card-tictactoe/internal/room"
)

// client is one websocket connection. Outbound messages go through send and
// are written by writePump; done is closed once the connection is finished.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// Send queues data without blocking. It reports false when the connection
// is closed or its queue is full.
func (c *client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// session is the per-connection identity, looked up by connection.
type session struct {
	connID   string
	playerID string
	roomID   string
}

// WSServer accepts game connections and dispatches their messages to rooms.
type WSServer struct {
	rooms    *room.Manager
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader

	sessions map[*client]*session
	mu       sync.RWMutex

	logger *zap.Logger
}

// NewWSServer creates a websocket server backed by rooms.
func NewWSServer(rooms *room.Manager, cfg config.WebSocketConfig, logger *zap.Logger) *WSServer {
	return &WSServer{
		rooms: rooms,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // browser clients are served from other origins
			},
		},
		sessions: make(map[*client]*session),
		logger:   logger,
	}
}

// ConnectionCount returns the number of open connections.
func (s *WSServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, s.cfg.SendQueueSize),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[c] = &session{connID: c.id}
	s.mu.Unlock()

	s.logger.Debug("websocket connected", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	go s.writePump(c)
	s.readPump(c)
}

// CloseAll closes every open connection.
func (s *WSServer) CloseAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.sessions {
		c.close()
	}
}

func (s *WSServer) readPump(c *client) {
	defer s.disconnect(c)

	if s.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		s.handle(c, data)
	}
}

func (s *WSServer) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// disconnect releases the connection's queue entry and seat binding.
func (s *WSServer) disconnect(c *client) {
	s.mu.Lock()
	sess := s.sessions[c]
	delete(s.sessions, c)
	s.mu.Unlock()

	s.rooms.Dequeue(c)
	if sess != nil && sess.roomID != "" {
		if r, ok := s.rooms.Get(sess.roomID); ok {
			if r.Disconnect(sess.playerID, c) {
				s.rooms.Remove(sess.roomID)
			}
		}
	}
	c.close()
	c.conn.Close()
	s.logger.Debug("websocket disconnected", zap.String("conn_id", c.id))
}

// session returns a copy of the connection's session record.
func (s *WSServer) session(c *client) session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[c]; ok {
		return *sess
	}
	return session{}
}

func (s *WSServer) bind(c *client, playerID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[c]; ok {
		sess.playerID = playerID
		sess.roomID = roomID
	}
}

func (s *WSServer) reply(c *client, msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	c.Send(data)
}

// replyError reports err to the offending connection only.
func (s *WSServer) replyError(c *client, err error) {
	var re *game.RuleError
	switch {
	case errors.As(err, &re):
		s.reply(c, protocol.Error(re.Error(), string(re.Code)))
	case errors.Is(err, protocol.ErrUnknownType):
		s.reply(c, protocol.Error(err.Error(), protocol.CodeUnknownType))
	case errors.Is(err, protocol.ErrMalformed), errors.Is(err, protocol.ErrMissingField):
		s.reply(c, protocol.Error(err.Error(), protocol.CodeMalformed))
	case errors.Is(err, room.ErrRoomFull):
		s.reply(c, protocol.Error(err.Error(), protocol.CodeRoomFull))
	case errors.Is(err, room.ErrNotInRoom), errors.Is(err, room.ErrRoomClosed):
		s.reply(c, protocol.Error(err.Error(), protocol.CodeNotInRoom))
	case errors.Is(err, room.ErrNoMatch):
		s.reply(c, protocol.Error(err.Error(), protocol.CodeNoMatch))
	case errors.Is(err, room.ErrRematchUnavailable):
		s.reply(c, protocol.Error(err.Error(), string(game.CodeWrongPhase)))
	default:
		s.logger.Error("unexpected error handling message", zap.String("conn_id", c.id), zap.Error(err))
		s.reply(c, protocol.Error("internal error", protocol.CodeInternal))
	}
}

// currentRoom resolves the room the connection is seated in.
func (s *WSServer) currentRoom(sess session) (*room.Room, error) {
	if sess.roomID == "" || sess.playerID == "" {
		return nil, room.ErrNotInRoom
	}
	r, ok := s.rooms.Get(sess.roomID)
	if !ok {
		return nil, room.ErrNotInRoom
	}
	return r, nil
}

func (s *WSServer) handle(c *client, data []byte) {
	in, err := protocol.Decode(data)
	if err != nil {
		s.replyError(c, err)
		return
	}
	sess := s.session(c)
	s.logger.Debug("message received",
		zap.String("conn_id", c.id),
		zap.String("type", string(in.Type)),
		zap.String("player_id", sess.playerID),
	)

	switch in.Type {
	case protocol.TypeJoinRoom:
		err = s.joinRoom(c, sess, in)
	case protocol.TypeQuickStart:
		s.bind(c, in.PlayerID, sess.roomID)
		_, err = s.rooms.Enqueue(in.PlayerID, in.PlayerName, c)
	case protocol.TypeLeaveRoom:
		err = s.leaveRoom(c, sess)
	default:
		err = s.forward(sess, in)
	}
	if err != nil {
		s.replyError(c, err)
	}
}

func (s *WSServer) joinRoom(c *client, sess session, in *protocol.Inbound) error {
	if sess.roomID != "" && (sess.roomID != in.RoomID || sess.playerID != in.PlayerID) {
		if err := s.leaveRoom(c, sess); err != nil && !errors.Is(err, room.ErrNotInRoom) {
			return err
		}
	}
	s.rooms.Dequeue(c)

	name := in.PlayerName
	if name == "" {
		name = in.PlayerID
	}
	if _, _, err := s.rooms.Join(in.RoomID, in.PlayerID, name, c); err != nil {
		return err
	}
	s.bind(c, in.PlayerID, in.RoomID)
	return nil
}

func (s *WSServer) leaveRoom(c *client, sess session) error {
	r, err := s.currentRoom(sess)
	if err != nil {
		return err
	}
	s.bind(c, sess.playerID, "")
	empty, err := r.Leave(sess.playerID)
	if empty {
		s.rooms.Remove(sess.roomID)
	}
	return err
}

// forward routes a game message to the connection's room.
func (s *WSServer) forward(sess session, in *protocol.Inbound) error {
	r, err := s.currentRoom(sess)
	if err != nil {
		return err
	}
	switch in.Type {
	case protocol.TypeSetDeck:
		return r.SetDeck(sess.playerID, in.Deck)
	case protocol.TypeReady:
		return r.Ready(sess.playerID)
	case protocol.TypeUseCard:
		return r.UseCard(sess.playerID, in.CardID, in.Params)
	case protocol.TypePlaceMark:
		return r.PlaceMark(sess.playerID, *in.Position)
	case protocol.TypeEndTurn:
		return r.SkipCardPhase(sess.playerID)
	case protocol.TypeCancelCard:
		return r.CancelCard(sess.playerID)
	case protocol.TypeRematchRequest:
		return r.RequestRematch(sess.playerID)
	case protocol.TypeChat:
		return r.Chat(sess.playerID, in.Message)
	}
	return protocol.ErrUnknownType
}
