package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-watchparty/internal/config"
	"github.com/npezzotti/go-watchparty/internal/server"
	"github.com/npezzotti/go-watchparty/internal/store"
)

type WatchPartyApp struct {
	log            *log.Logger
	mux            *http.Server
	ps             *server.PartyServer
	store          *store.RoomStore
	sessions       *store.SessionRegistry
	allowedOrigins []string
	startTime      time.Time
}

func NewWatchPartyApp(mux *http.ServeMux, logger *log.Logger, ps *server.PartyServer,
	rs *store.RoomStore, sr *store.SessionRegistry, cfg *config.Config) *WatchPartyApp {
	s := &WatchPartyApp{
		log:            logger,
		ps:             ps,
		store:          rs,
		sessions:       sr,
		allowedOrigins: cfg.AllowedOrigins,
		startTime:      time.Now(),
	}

	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("GET /api/room/{code}", s.getRoom)
	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *WatchPartyApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *WatchPartyApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
