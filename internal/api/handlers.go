package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-watchparty/internal/server"
	"github.com/teris-io/shortid"
)

type IndexResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

type StatusResponse struct {
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Rooms          int    `json:"rooms"`
	Connections    int    `json:"connections"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
}

type RoomResponse struct {
	Code     string    `json:"code"`
	Users    int       `json:"users"`
	HasVideo bool      `json:"has_video"`
	Created  time.Time `json:"created"`
}

type CreateRoomResponse struct {
	Code string `json:"code"`
}

func (s *WatchPartyApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *WatchPartyApp) index(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, IndexResponse{
		Status:      "ok",
		Rooms:       s.store.Count(),
		Connections: s.ps.NumClients(),
	})
}

func (s *WatchPartyApp) status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.writeJson(w, http.StatusOK, StatusResponse{
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		Rooms:          s.store.Count(),
		Connections:    s.ps.NumClients(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: memStats.HeapAlloc,
	})
}

func (s *WatchPartyApp) getRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))

	state, ok := s.store.Get(code)
	if !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, RoomResponse{
		Code:     state.Code,
		Users:    len(state.Users),
		HasVideo: state.CurrentVideo != "",
		Created:  state.CreatedAt,
	})
}

func (s *WatchPartyApp) createRoom(w http.ResponseWriter, r *http.Request) {
	sid, err := shortid.Generate()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, CreateRoomResponse{
		Code: strings.ToUpper(sid),
	})
}

func (s *WatchPartyApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(uuid.NewString(), conn, s.ps, s.log)
	s.ps.RegisterClient(client)

	go client.Write()
	go client.Read()
}
