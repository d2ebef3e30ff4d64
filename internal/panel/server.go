package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/eltechnic0/arduino-control/internal/command"
	"github.com/eltechnic0/arduino-control/internal/config"
	"github.com/eltechnic0/arduino-control/internal/device"
	"github.com/eltechnic0/arduino-control/internal/logging"
)

// Prober reports whether the backend host accepts connections and how the
// client breaker currently sees it.
type Prober interface {
	Reachable(ctx context.Context, timeout time.Duration) bool
	BaseURL() string
	BreakerState() gobreaker.State
}

// StatusReporter exposes the last status seen by the connection watcher.
type StatusReporter interface {
	Status() device.ConnectionStatus
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	ctrl   *Controller
	hub    *Hub
	logs   *logging.Buffer
	probe  Prober
	status StatusReporter
	log    zerolog.Logger
	page   *template.Template

	router      *mux.Router
	httpServer  *http.Server
	unsubscribe func()
}

// NewServer creates a new HTTP server. View changes of ctrl are pushed to
// websocket clients until Shutdown. status may be nil when no watcher runs.
func NewServer(cfg *config.Config, ctrl *Controller, probe Prober, status StatusReporter, logs *logging.Buffer, log zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		ctrl:   ctrl,
		hub:    NewHub(log),
		logs:   logs,
		probe:  probe,
		status: status,
		log:    log.With().Str("component", "server").Logger(),
		page:   template.Must(template.New("panel").Parse(webUI)),
		router: mux.NewRouter(),
	}
	s.unsubscribe = ctrl.Subscribe(s.hub.Broadcast)
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/view", s.handleView).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.handleClearLogs).Methods(http.MethodDelete)

	// Connection
	api.HandleFunc("/refresh", s.simple(s.ctrl.Refresh)).Methods(http.MethodPost)
	api.HandleFunc("/connect", s.simple(s.ctrl.Connect)).Methods(http.MethodPost)
	api.HandleFunc("/reconnect", s.simple(s.ctrl.Reconnect)).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", s.simple(s.ctrl.Disconnect)).Methods(http.MethodPost)

	// Commands
	api.HandleFunc("/comtest", s.simple(s.ctrl.Comtest)).Methods(http.MethodPost)
	api.HandleFunc("/vset", s.handleVSetBatch).Methods(http.MethodPost)
	api.HandleFunc("/vset/{row:[0-9]+}", s.handleVSetRow).Methods(http.MethodPost)
	api.HandleFunc("/vread", s.handleVReadBatch).Methods(http.MethodPost)
	api.HandleFunc("/vread/{row:[0-9]+}", s.handleVReadRow).Methods(http.MethodPost)
	api.HandleFunc("/verbose", s.handleVerbose).Methods(http.MethodPost)
	api.HandleFunc("/script", s.handleScript).Methods(http.MethodPost)
	api.HandleFunc("/scripts/{id}", s.handleLoadScript).Methods(http.MethodGet)

	// Grid
	api.HandleFunc("/grid/click", s.handleGridClick).Methods(http.MethodPost)
	api.HandleFunc("/grid/point", s.handleGridPoint).Methods(http.MethodPost)
	api.HandleFunc("/grid/send", s.simple(s.ctrl.GridSend)).Methods(http.MethodPost)
	api.HandleFunc("/grid/reset", s.simple(s.ctrl.GridReset)).Methods(http.MethodPost)
	api.HandleFunc("/grid/options", s.handleGridOptions).Methods(http.MethodPut)

	// History, calibration and notifications
	api.HandleFunc("/history/{id}/replay", s.handleReplay).Methods(http.MethodPost)
	api.HandleFunc("/calibration/toggle", s.simple(s.ctrl.ToggleCalibration)).Methods(http.MethodPost)
	api.HandleFunc("/flash/dismiss", s.handleDismissFlash).Methods(http.MethodPost)

	// Live view
	s.router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	// Web UI
	s.router.HandleFunc("/", s.handleUI).Methods(http.MethodGet)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("panel listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// actionResponse is returned by every action: the resulting view and the
// action error, if any. Validation errors also appear as the view flash.
type actionResponse struct {
	View  View   `json:"view"`
	Error string `json:"error,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	resp := actionResponse{View: s.ctrl.View()}
	if err != nil && !errors.Is(err, command.ErrEmpty) {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) simple(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, fn(r.Context()))
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reachable := s.probe.Reachable(r.Context(), 2*time.Second)
	health := map[string]interface{}{
		"status":            "healthy",
		"backend":           s.probe.BaseURL(),
		"backend_reachable": reachable,
		"breaker":           s.probe.BreakerState().String(),
		"ws_clients":        s.hub.Clients(),
	}
	if s.status != nil {
		health["watcher"] = s.status.Status()
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.View())
}

// handleLogs returns buffered log entries, optionally filtered by
// ?level=warn,error
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if v := r.URL.Query().Get("level"); v != "" {
		levels = strings.Split(v, ",")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": s.logs.Entries(levels),
	})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.logs.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleVSetBatch(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.VSetBatch(r.Context(), req.Text))
}

type rowRequest struct {
	Value    string `json:"value"`
	Settling string `json:"settling"`
}

func (s *Server) handleVSetRow(w http.ResponseWriter, r *http.Request) {
	row, _ := strconv.Atoi(mux.Vars(r)["row"])
	var req rowRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.VSetRow(r.Context(), row, req.Value, req.Settling))
}

func (s *Server) handleVReadBatch(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.VReadBatch(r.Context(), req.Text))
}

func (s *Server) handleVReadRow(w http.ResponseWriter, r *http.Request) {
	row, _ := strconv.Atoi(mux.Vars(r)["row"])
	s.respond(w, s.ctrl.VReadRow(r.Context(), row))
}

func (s *Server) handleVerbose(w http.ResponseWriter, r *http.Request) {
	var req command.Verbose
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.SetVerbose(r.Context(), req.Value))
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.Script(r.Context(), req.Text))
}

func (s *Server) handleLoadScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	text, err := s.ctrl.LoadScript(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, textRequest{Text: text})
}

type clickRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

func (s *Server) handleGridClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.GridClick(r.Context(), req.X, req.Y, req.Size))
}

type pointRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleGridPoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decode(w, r, &req) {
		return
	}
	s.ctrl.SetGridPoint(req.X, req.Y)
	s.respond(w, nil)
}

func (s *Server) handleGridOptions(w http.ResponseWriter, r *http.Request) {
	var req GridOptions
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, s.ctrl.SetGridOptions(req))
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.ctrl.Replay(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrNotReplayable):
		writeError(w, http.StatusConflict, err)
	default:
		s.respond(w, err)
	}
}

func (s *Server) handleDismissFlash(w http.ResponseWriter, r *http.Request) {
	s.ctrl.DismissFlash()
	s.respond(w, nil)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.ctrl.View())
}

// handleUI serves the web UI
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		View         View
		FlashTimeout int64
	}{
		View:         s.ctrl.View(),
		FlashTimeout: s.config.Panel.FlashTimeout.Milliseconds(),
	}
	if err := s.page.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("render page")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
