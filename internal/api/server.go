// Package api is a read-only HTTP view of the book: depth queries,
// order lookups, health and counters. Mutations stay on the command
// surfaces.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"skoll/internal/engine"
	"skoll/internal/interp"
)

// Server holds the HTTP router over a shared interpreter.
type Server struct {
	it        *interp.Interpreter
	router    *mux.Router
	startTime time.Time

	depthQueries atomic.Int64
	orderQueries atomic.Int64
}

func NewServer(it *interp.Interpreter) *Server {
	s := &Server{
		it:        it,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/book", s.handleBookAll).Methods("GET")
	api.HandleFunc("/book/{symbol}", s.handleBookSymbol).Methods("GET")
	api.HandleFunc("/orders/{order_id}", s.handleGetOrder).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
}

// LevelResponse is one side of one rank of a depth response.
type LevelResponse struct {
	OrderID  uint64  `json:"order_id"`
	Kind     string  `json:"kind"`
	Quantity uint64  `json:"quantity"`
	Price    float64 `json:"price"`
}

// DepthResponse is the JSON rendering of one symbol's book depth.
type DepthResponse struct {
	Symbol string `json:"symbol"`
	Levels []struct {
		Rank  int            `json:"rank"`
		Bid   *LevelResponse `json:"bid,omitempty"`
		Offer *LevelResponse `json:"offer,omitempty"`
	} `json:"levels"`
}

func depthResponse(depth engine.BookDepth) DepthResponse {
	resp := DepthResponse{Symbol: depth.Symbol}
	for _, level := range depth.Levels {
		row := struct {
			Rank  int            `json:"rank"`
			Bid   *LevelResponse `json:"bid,omitempty"`
			Offer *LevelResponse `json:"offer,omitempty"`
		}{Rank: level.Rank}
		if level.Bid != nil {
			row.Bid = levelResponse(level.Bid)
		}
		if level.Offer != nil {
			row.Offer = levelResponse(level.Offer)
		}
		resp.Levels = append(resp.Levels, row)
	}
	return resp
}

func levelResponse(e *engine.LevelEntry) *LevelResponse {
	return &LevelResponse{
		OrderID:  uint64(e.OrderID),
		Kind:     e.Kind.String(),
		Quantity: e.Quantity,
		Price:    e.Price,
	}
}

// asOf reads the optional as_of query parameter, defaulting to latest.
func asOf(r *http.Request) (engine.Timestamp, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return engine.TimeLatest, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return engine.Timestamp(v), true
}

// handleBookAll handles GET /api/v1/book
func (s *Server) handleBookAll(w http.ResponseWriter, r *http.Request) {
	s.depthQueries.Add(1)
	ts, ok := asOf(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "as_of must be an unsigned integer")
		return
	}

	s.it.Lock()
	depths := s.it.Directory().QueryAll(ts)
	s.it.Unlock()

	out := make([]DepthResponse, 0, len(depths))
	for _, depth := range depths {
		out = append(out, depthResponse(depth))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleBookSymbol handles GET /api/v1/book/{symbol}
func (s *Server) handleBookSymbol(w http.ResponseWriter, r *http.Request) {
	s.depthQueries.Add(1)
	ts, ok := asOf(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "as_of must be an unsigned integer")
		return
	}
	symbol := mux.Vars(r)["symbol"]

	s.it.Lock()
	depth, err := s.it.Directory().QuerySymbol(symbol, ts)
	s.it.Unlock()
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol: "+symbol)
		return
	}
	respondJSON(w, http.StatusOK, depthResponse(depth))
}

// OrderResponse is the JSON rendering of one order and its history.
type OrderResponse struct {
	OrderID uint64          `json:"order_id"`
	Symbol  string          `json:"symbol"`
	Kind    string          `json:"kind"`
	History []HistoryRecord `json:"history"`
}

type HistoryRecord struct {
	Status    string  `json:"status"`
	Timestamp uint64  `json:"timestamp"`
	Price     float64 `json:"price"`
	Remaining uint64  `json:"remaining"`
}

// handleGetOrder handles GET /api/v1/orders/{order_id}
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	s.orderQueries.Add(1)
	raw := mux.Vars(r)["order_id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "order_id must be an unsigned integer")
		return
	}
	ts, ok := asOf(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "as_of must be an unsigned integer")
		return
	}

	s.it.Lock()
	order, symbol, found := s.it.Directory().FindOrder(engine.OrderID(id))
	var snap engine.HistoryEntry
	if found {
		snap = order.Snapshot(ts)
	}
	s.it.Unlock()
	if !found {
		respondError(w, http.StatusNotFound, "order does not exist")
		return
	}

	respondJSON(w, http.StatusOK, OrderResponse{
		OrderID: id,
		Symbol:  symbol,
		Kind:    order.Kind().String(),
		History: []HistoryRecord{{
			Status:    snap.Status.String(),
			Timestamp: uint64(snap.Timestamp),
			Price:     snap.Price,
			Remaining: snap.Remaining,
		}},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.it.Lock()
	symbols := len(s.it.Directory().Symbols())
	watermark := uint64(s.it.Directory().Watermark())
	s.it.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"symbols":        symbols,
		"watermark":      watermark,
		"depth_queries":  s.depthQueries.Load(),
		"order_queries":  s.orderQueries.Load(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("unable to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
