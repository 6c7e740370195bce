// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server exposes the engine over HTTP: a JSON query surface, a
// command endpoint, and a websocket price stream.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/govmarkets/futarchy/pkg/amm"
	"github.com/govmarkets/futarchy/pkg/balance"
	"github.com/govmarkets/futarchy/pkg/engine"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
	"github.com/govmarkets/futarchy/pkg/metric"
)

// Server routes HTTP traffic to the engine.
type Server struct {
	engine  *engine.Engine
	metrics *metric.Metrics
	log     log.Logger

	streamInterval time.Duration
	upgrader       websocket.Upgrader
}

// New builds a server. streamInterval controls the websocket push cadence;
// zero selects one second.
func New(eng *engine.Engine, metrics *metric.Metrics, streamInterval time.Duration, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NoLog
	}
	if streamInterval <= 0 {
		streamInterval = time.Second
	}
	return &Server{
		engine:         eng,
		metrics:        metrics,
		log:            logger,
		streamInterval: streamInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/spot", s.handleSpot).Methods("GET")
	r.HandleFunc("/market", s.handleMarket).Methods("GET")
	r.HandleFunc("/market/twap/{outcome}", s.handleTwap).Methods("GET")
	r.HandleFunc("/balances/{user}", s.handleBalances).Methods("GET")
	r.HandleFunc("/commands", s.handleCommand).Methods("POST")
	r.HandleFunc("/ws", s.handleStream)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status(time.Now()))
}

func (s *Server) handleSpot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status(time.Now()).Spot)
}

func (s *Server) handleMarket(w http.ResponseWriter, _ *http.Request) {
	view, err := s.engine.ActiveMarketView(time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTwap(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["outcome"]
	outcome, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outcome index"})
		return
	}
	twap, err := s.engine.Twap(uint8(outcome), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"twap": twap.String()})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	user, err := ids.FromString(mux.Vars(r)["user"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	slots, err := s.engine.Balances(user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type commandRequest struct {
	Type      string `json:"type"`
	User      string `json:"user,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Outcome   uint8  `json:"outcome,omitempty"`
	Direction string `json:"direction,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	MinOut    uint64 `json:"min_out,omitempty"`
}

type commandResponse struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed command"})
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	out, err := s.engine.Apply(time.Now(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Amount: out})
}

func (r commandRequest) toCommand() (engine.Command, error) {
	kind, err := parseKind(r.Kind)
	if err != nil && (r.Type == "split" || r.Type == "recombine") {
		return nil, err
	}
	dir, err := parseDirection(r.Direction)
	if err != nil && (r.Type == "swap" || r.Type == "spot_swap") {
		return nil, err
	}

	switch r.Type {
	case "split", "recombine":
		user, err := ids.FromString(r.User)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		if r.Type == "split" {
			return engine.SplitCommand{User: user, Kind: kind, Amount: r.Amount}, nil
		}
		return engine.RecombineCommand{User: user, Kind: kind, Amount: r.Amount}, nil
	case "swap":
		user, err := ids.FromString(r.User)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		return engine.SwapCommand{
			User: user, Outcome: r.Outcome, Direction: dir,
			AmountIn: r.Amount, MinOut: r.MinOut,
		}, nil
	case "spot_swap":
		return engine.SpotSwapCommand{Direction: dir, AmountIn: r.Amount, MinOut: r.MinOut}, nil
	default:
		return nil, fmt.Errorf("unknown command type %q", r.Type)
	}
}

func parseKind(s string) (balance.Kind, error) {
	switch s {
	case "asset":
		return balance.Asset, nil
	case "stable":
		return balance.Stable, nil
	default:
		return 0, fmt.Errorf("unknown coin kind %q", s)
	}
}

func parseDirection(s string) (amm.SwapDirection, error) {
	switch s {
	case "stable_for_asset":
		return amm.SwapStableForAsset, nil
	case "asset_for_stable":
		return amm.SwapAssetForStable, nil
	default:
		return 0, fmt.Errorf("unknown swap direction %q", s)
	}
}

// handleStream pushes status snapshots over a websocket until the client
// goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Err(err))
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.engine.Status(time.Now())); err != nil {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto status codes: temporal gates and
// missing state read as client-visible conditions, not server faults.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, engine.ErrNoActiveProposal):
		code = http.StatusNotFound
	case errors.Is(err, amm.ErrTwapNotReady):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
