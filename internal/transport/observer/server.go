package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/world"
)

// Server exposes read-only views of the world to tooling on the same host.
type Server struct {
	world *world.World
	log   *log.Logger
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{world: w, log: logger}
}

type StateResponse struct {
	WorldID string             `json:"world_id"`
	Tick    uint64             `json:"tick"`
	Digest  string             `json:"digest"`
	Metrics world.WorldMetrics `json:"metrics"`
	World   protocol.WorldInfo `json:"world"`
}

// Routes mounts the handlers on r; every route is loopback-only.
func (s *Server) Routes(r chi.Router) {
	r.Use(loopbackOnly)
	r.Get("/state", s.StateHandler())
	r.Get("/robots/{id}", s.RobotHandler())
}

func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		info, ok := s.snapshot(rw, r)
		if !ok {
			return
		}
		writeJSON(rw, http.StatusOK, StateResponse{
			WorldID: s.world.ID(),
			Tick:    info.Tick,
			Digest:  protocol.StateDigest(info),
			Metrics: s.world.Metrics(),
			World:   info,
		})
	}
}

func (s *Server) RobotHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(rw, "bad robot id", http.StatusBadRequest)
			return
		}
		info, ok := s.snapshot(rw, r)
		if !ok {
			return
		}
		for _, robot := range info.Robots {
			if robot.ID == id {
				writeJSON(rw, http.StatusOK, robot)
				return
			}
		}
		http.Error(rw, "unknown robot", http.StatusNotFound)
	}
}

func (s *Server) snapshot(rw http.ResponseWriter, r *http.Request) (protocol.WorldInfo, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	info, err := s.world.RequestSnapshot(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Printf("state snapshot: %v", err)
		}
		http.Error(rw, "world busy", http.StatusServiceUnavailable)
		return protocol.WorldInfo{}, false
	}
	return info, true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
