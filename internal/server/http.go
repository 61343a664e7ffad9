package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/syu-y/card-tictactoe/internal/config"
	"github.com/syu-y/card-tictactoe/internal/game/cards"
	"github.com/syu-y/card-tictactoe/internal/repository"
	"github.com/syu-y/card-tictactoe/internal/room"
)

// HTTPServer serves the websocket endpoint and the read-only JSON API.
type HTTPServer struct {
	server *http.Server
	ws     *WSServer
	logger *zap.Logger
}

// HTTPServerOptions wires an HTTPServer.
type HTTPServerOptions struct {
	Config       config.ServerConfig
	Rooms        *room.Manager
	Recorder     repository.MatchRecorder // optional
	HistoryLimit int
	Logger       *zap.Logger
}

// NewHTTPServer builds the router and the underlying http.Server.
func NewHTTPServer(opts HTTPServerOptions) *HTTPServer {
	ws := NewWSServer(opts.Rooms, opts.Config.WebSocket, opts.Logger)

	r := mux.NewRouter()
	r.Handle("/ws", ws).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth(ws, opts.Rooms)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)
	api.HandleFunc("/cards", handleListCards()).Methods(http.MethodGet)
	api.HandleFunc("/rooms", handleListRooms(opts.Rooms)).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomID}", handleGetRoom(opts.Rooms)).Methods(http.MethodGet)
	if opts.Recorder != nil {
		api.HandleFunc("/matches", handleListMatches(opts.Recorder, opts.HistoryLimit, opts.Logger)).Methods(http.MethodGet)
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:         opts.Config.HTTP.Address,
			Handler:      r,
			ReadTimeout:  opts.Config.HTTP.ReadTimeout,
			WriteTimeout: opts.Config.HTTP.WriteTimeout,
		},
		ws:     ws,
		logger: opts.Logger,
	}
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info("HTTP server listening", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.Info("HTTP server closed")
			return nil
		}
		return err
	}
	return nil
}

// Shutdown closes open websocket connections and stops the listener.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.ws.CloseAll()
	return s.server.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func handleHealth(ws *WSServer, rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"rooms":       rooms.Count(),
			"connections": ws.ConnectionCount(),
			"queued":      rooms.QueueLen(),
		})
	}
}

func handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, cards.All())
	}
}

func handleListRooms(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, rooms.Infos())
	}
}

func handleGetRoom(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, ok := rooms.Get(mux.Vars(r)["roomID"])
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		_ = writeJSON(w, http.StatusOK, rm.Info())
	}
}

func handleListMatches(recorder repository.MatchRecorder, limit int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := limit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			if limit <= 0 || v < limit {
				n = v
			}
		}
		matches, err := recorder.RecentMatches(r.Context(), n)
		if err != nil {
			logger.Error("failed to list matches", zap.Error(err))
			http.Error(w, "failed to list matches", http.StatusInternalServerError)
			return
		}
		if matches == nil {
			matches = []repository.MatchRecord{}
		}
		_ = writeJSON(w, http.StatusOK, matches)
	}
}
