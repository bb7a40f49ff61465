// Package api serves a local HTTP API over the covers and config entries
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"blindscontrol/internal/controller"
	"blindscontrol/internal/cover"
	"blindscontrol/internal/dayphase"
	"blindscontrol/internal/integration"

	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

// EntryManager sets up and unloads config entries. integration.Manager implements it.
type EntryManager interface {
	Entries() []integration.Entry
	SetupEntry(ctx context.Context, entry integration.Entry) (bool, error)
	UnloadEntry(entryID string) (bool, error)
}

// SunStatus reports the sun schedule
type SunStatus interface {
	Next() (dayphase.Event, bool)
	Today() (dayphase.SunTimes, dayphase.SunEvent)
}

// SunReport is the body of GET /api/sun
type SunReport struct {
	Phase dayphase.SunEvent `json:"phase"`
	Today dayphase.SunTimes `json:"today"`
	Next  *dayphase.Event   `json:"next,omitempty"`
}

// Server provides HTTP API endpoints for the covers
type Server struct {
	covers  *cover.Registry
	entries EntryManager
	sun     SunStatus
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a new API server. sun may be nil when no schedule runs.
func NewServer(covers *cover.Registry, entries EntryManager, sun SunStatus, logger *zap.Logger, port int) *Server {
	s := &Server{
		covers:  covers,
		entries: entries,
		sun:     sun,
		logger:  logger.Named("api"),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: commandTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/covers", s.handleListCovers)
	mux.HandleFunc("GET /api/covers/{id}", s.handleGetCover)
	mux.HandleFunc("POST /api/covers/{id}/position", s.handleSetPosition)
	mux.HandleFunc("POST /api/covers/{id}/{command}", s.handleCommand)
	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleUnloadEntry)
	mux.HandleFunc("POST /api/flows/{domain}", s.handleFlow)
	mux.HandleFunc("GET /api/sun", s.handleSun)
	return mux
}

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor maps cover and controller errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, cover.ErrUnknownCover), errors.Is(err, integration.ErrUnknownEntry):
		return http.StatusNotFound
	case errors.Is(err, cover.ErrUnknownCommand), errors.Is(err, integration.ErrUnknownDomain):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrCommandRejected), errors.Is(err, cover.ErrDuplicateCover):
		return http.StatusConflict
	case errors.Is(err, controller.ErrUnreachable), errors.Is(err, controller.ErrInvalidResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"covers": len(s.covers.Covers()),
	})
}

func (s *Server) handleListCovers(w http.ResponseWriter, r *http.Request) {
	covers := s.covers.Covers()
	states := make([]cover.State, 0, len(covers))
	for _, c := range covers {
		states = append(states, c.Snapshot())
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	c, err := s.covers.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, c.Snapshot())
}

// PositionRequest is the body of POST /api/covers/{id}/position
type PositionRequest struct {
	Position *int `json:"position"`
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		s.writeError(w, http.StatusBadRequest, errors.New(`body must be {"position": 0-100}`))
		return
	}
	s.execute(w, r, cover.CommandSetPosition, *req.Position)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := cover.ParseCommand(r.PathValue("command"))
	if err == nil && cmd == cover.CommandSetPosition {
		err = fmt.Errorf("%w: use /position", cover.ErrUnknownCommand)
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.execute(w, r, cmd, 0)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, cmd cover.Command, pos int) {
	c, err := s.covers.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := c.Execute(ctx, cmd, pos); err != nil {
		s.logger.Warn("Cover command failed",
			zap.String("unique_id", c.UniqueID()),
			zap.String("command", string(cmd)),
			zap.Error(err))
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.entries.Entries())
}

func (s *Server) handleUnloadEntry(w http.ResponseWriter, r *http.Request) {
	if _, err := s.entries.UnloadEntry(r.PathValue("id")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFlow runs the user step of a domain's config flow. An empty body returns the
// form; a valid submission creates and sets up the entry.
func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := integration.NewFlow(r.PathValue("domain"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	result := flow.StepUser(input)
	if result.Type != integration.ResultCreateEntry {
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	if _, err := s.entries.SetupEntry(r.Context(), *result.Entry); err != nil {
		s.logger.Warn("Entry setup failed", zap.String("entry", result.Entry.ID), zap.Error(err))
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSun(w http.ResponseWriter, r *http.Request) {
	if s.sun == nil {
		s.writeError(w, http.StatusNotFound, errors.New("sun schedule is not enabled"))
		return
	}
	var report SunReport
	report.Today, report.Phase = s.sun.Today()
	if ev, ok := s.sun.Next(); ok {
		report.Next = &ev
	}
	s.writeJSON(w, http.StatusOK, report)
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/health", Method: "GET", Description: "Health check with the number of loaded covers"},
	{Path: "/api/covers", Method: "GET", Description: "State of every cover"},
	{Path: "/api/covers/{id}", Method: "GET", Description: "State of one cover by unique id"},
	{Path: "/api/covers/{id}/open", Method: "POST", Description: "Open a cover"},
	{Path: "/api/covers/{id}/close", Method: "POST", Description: "Close a cover"},
	{Path: "/api/covers/{id}/stop", Method: "POST", Description: "Stop a moving cover"},
	{Path: "/api/covers/{id}/position", Method: "POST", Description: `Move a cover, body {"position": 0-100}`},
	{Path: "/api/entries", Method: "GET", Description: "Loaded config entries"},
	{Path: "/api/entries/{id}", Method: "DELETE", Description: "Unload a config entry"},
	{Path: "/api/flows/{domain}", Method: "POST", Description: "Config flow: empty body returns the form, host/port creates an entry"},
	{Path: "/api/sun", Method: "GET", Description: "Phase of the day, today's sun times and the next scheduled event"},
}

// handleSitemap lists the endpoints as HTML for browsers and plain text otherwise
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head>
    <title>Blinds Control API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>Blinds Control API</h1>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprint(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Blinds Control API\n")
		fmt.Fprintf(w, "==================\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-7s %-28s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExample:\n\n")
		fmt.Fprintf(w, "  curl -X POST -d '{\"position\": 40}' http://localhost%s/api/covers/blinds_control_1/position\n", s.server.Addr)
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
