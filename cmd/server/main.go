package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-watchparty/internal/api"
	"github.com/npezzotti/go-watchparty/internal/config"
	"github.com/npezzotti/go-watchparty/internal/server"
	"github.com/npezzotti/go-watchparty/internal/stats"
	"github.com/npezzotti/go-watchparty/internal/store"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	reapInterval   time.Duration
	roomRetention  time.Duration
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.DurationVar(&reapInterval, "reap-interval", time.Hour, "how often to sweep for stale rooms")
	flag.DurationVar(&roomRetention, "room-retention", 24*time.Hour, "how long empty rooms are kept before reaping")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[watchparty] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, allowedOrigins, reapInterval, roomRetention)
	if err != nil {
		logger.Fatal("config:", err)
	}

	roomStore := store.NewRoomStore()
	sessions := store.NewSessionRegistry()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	partyServer, err := server.NewPartyServer(logger, roomStore, sessions, statsUpdater,
		cfg.ReapInterval, cfg.RoomRetention)
	if err != nil {
		logger.Fatal("new party server:", err)
	}

	srv := api.NewWatchPartyApp(mux, logger, partyServer, roomStore, sessions, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go partyServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down party server...")
	if err := partyServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("party server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
