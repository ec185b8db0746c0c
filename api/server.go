// Package api wires the settlement coordinator, risk monitor, and
// WebSocket hub onto an HTTP surface. Grounded on the teacher's
// api/server.go Server (one struct holding every subsystem, handler
// methods registered in main.go) and on riverpool.go's gorilla/mux
// RegisterRoutes/mux.Vars path-parameter style from the sibling perp-dex
// example.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rtx-labs/posengine/analytics"
	"github.com/rtx-labs/posengine/auth"
	"github.com/rtx-labs/posengine/database"
	"github.com/rtx-labs/posengine/internal/enginerr"
	"github.com/rtx-labs/posengine/logging"
	"github.com/rtx-labs/posengine/monitoring"
	"github.com/rtx-labs/posengine/oms"
	"github.com/rtx-labs/posengine/orders"
	"github.com/rtx-labs/posengine/risk"
	"github.com/rtx-labs/posengine/ws"
)

// Server holds every subsystem an HTTP handler needs and exposes the
// wired gorilla/mux router.
type Server struct {
	coordinator *oms.Coordinator
	store       database.Store
	monitor     *risk.Monitor
	auth        *auth.Service
	hub         *ws.Hub
	health      *monitoring.HealthChecker
	metrics     *monitoring.MetricsCollector
	logger      *logging.Logger
}

// NewServer constructs a Server and registers its routes on a fresh
// gorilla/mux router.
func NewServer(coordinator *oms.Coordinator, store database.Store, monitor *risk.Monitor, authSvc *auth.Service, hub *ws.Hub, health *monitoring.HealthChecker, metrics *monitoring.MetricsCollector, logger *logging.Logger) *mux.Router {
	s := &Server{
		coordinator: coordinator,
		store:       store,
		monitor:     monitor,
		auth:        authSvc,
		hub:         hub,
		health:      health,
		metrics:     metrics,
		logger:      logger,
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", health.HTTPHealthHandler()).Methods("GET")
	r.HandleFunc("/ready", health.HTTPReadinessHandler()).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	positions := r.PathPrefix("/positions").Subrouter()
	positions.Use(s.authMiddleware)
	positions.HandleFunc("/open", monitoring.APIRequestMiddleware("positions.open", s.handleOpenPosition)).Methods("POST")
	positions.HandleFunc("/{id}", monitoring.APIRequestMiddleware("positions.get", s.handleGetPosition)).Methods("GET")
	positions.HandleFunc("/{id}/modify", monitoring.APIRequestMiddleware("positions.modify", s.handleModifyPosition)).Methods("PUT")
	positions.HandleFunc("/{id}/close", monitoring.APIRequestMiddleware("positions.close", s.handleClosePosition)).Methods("DELETE")

	users := r.PathPrefix("/users/{owner}").Subrouter()
	users.Use(s.authMiddleware)
	users.HandleFunc("/positions", monitoring.APIRequestMiddleware("users.positions", s.handleListPositions)).Methods("GET")
	users.HandleFunc("/analytics", monitoring.APIRequestMiddleware("users.analytics", s.handleAnalytics)).Methods("GET")

	return r
}

type ownerKey struct{}

// authMiddleware validates the bearer token and stashes the authenticated
// owner in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			s.writeError(w, enginerr.New(enginerr.NotFound, "missing bearer token"), http.StatusUnauthorized)
			return
		}
		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.writeError(w, err, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, claims.Owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOwner checks that the path/body owner matches the authenticated
// token owner, since the engine's single bootstrap credential may still
// scope requests to an owner supplied by the caller.
func requireOwner(r *http.Request, requested string) error {
	tokenOwner, _ := r.Context().Value(ownerKey{}).(string)
	if requested != "" && requested != tokenOwner {
		return enginerr.New(enginerr.NotFound, "position not found")
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}
	token, err := s.auth.Login(body.Username, body.Password)
	if err != nil {
		s.writeError(w, err, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWs(r.Context(), w, r)
}

type openPositionRequest struct {
	Owner      string `json:"owner"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Size       int64  `json:"size"`
	Leverage   int64  `json:"leverage"`
	EntryPrice int64  `json:"entry_price"`
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var body openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := requireOwner(r, body.Owner); err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}

	side := orders.Long
	if strings.EqualFold(body.Side, "short") {
		side = orders.Short
	}

	p, err := s.coordinator.Open(r.Context(), oms.OpenRequest{
		Owner: body.Owner, Symbol: body.Symbol, Side: side,
		Size: body.Size, Leverage: body.Leverage, EntryPrice: body.EntryPrice,
	})
	if err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.store.GetPosition(r.Context(), id)
	if err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	if err := requireOwner(r, p.Owner); err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type modifyPositionRequest struct {
	Owner      string `json:"owner"`
	Kind       string `json:"type"`
	AddSize    int64  `json:"add_size"`
	AddMargin  int64  `json:"add_margin"`
	ReduceSize int64  `json:"reduce_size"`
	Amount     int64  `json:"amount"`
	Price      int64  `json:"price"`
}

func (s *Server) handleModifyPosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body modifyPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := requireOwner(r, body.Owner); err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}

	p, err := s.coordinator.Modify(r.Context(), oms.ModifyRequest{
		Owner: body.Owner, PositionID: id, Kind: oms.ModifyKind(body.Kind),
		AddSize: body.AddSize, AddMargin: body.AddMargin, ReduceSize: body.ReduceSize,
		Amount: body.Amount, Price: body.Price,
	})
	if err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type closePositionRequest struct {
	Owner          string `json:"owner"`
	ExitPrice      int64  `json:"exit_price"`
	FundingPayment int64  `json:"funding_payment"`
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body closePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := requireOwner(r, body.Owner); err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}

	p, err := s.coordinator.Close(r.Context(), oms.CloseRequest{
		Owner: body.Owner, PositionID: id, ExitPrice: body.ExitPrice, FundingPayment: body.FundingPayment,
	})
	if err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if err := requireOwner(r, owner); err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	ps, err := s.store.GetPositionsByOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// handleAnalytics synthesizes trade records from an owner's closed
// positions and computes performance/concentration metrics on demand. No
// analytics value gates a transition; this is purely read-side reporting.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if err := requireOwner(r, owner); err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}
	ps, err := s.store.GetPositionsByOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, err, enginerr.HTTPStatus(enginerr.KindOf(err)))
		return
	}

	acc := analytics.New()
	var exposures []analytics.PositionExposure
	for _, p := range ps {
		if p.State == orders.StateClosed {
			acc.AddTrade(analytics.TradeRecord{
				Symbol: p.Symbol, EntryPrice: p.EntryPrice, Size: p.Size,
				PnL: p.RealizedPnL, ExitTime: p.LastUpdate,
			})
			continue
		}
		exposures = append(exposures, analytics.PositionExposure{Symbol: p.Symbol, Size: p.Size, Mark: p.EntryPrice})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"performance": acc.Metrics(),
		"risk":        analytics.PortfolioRiskOf(exposures),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error, status int) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= 500 && s.logger != nil {
		s.logger.Error("request failed", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(enginerr.KindOf(err))})
}

