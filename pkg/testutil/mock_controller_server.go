package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"blindscontrol/internal/controller"
)

// MockControllerServer emulates a blind controller's HTTP API over httptest.
// Blinds start without a known position; open, close and temp/{raw} move them.
type MockControllerServer struct {
	server *httptest.Server

	mu       sync.Mutex
	device   controller.DeviceConfig
	raw      map[int]int
	rejected map[int]string
	down     bool
	requests []string
}

// NewMockControllerServer starts a server serving the given /download_config table
func NewMockControllerServer(device controller.DeviceConfig) *MockControllerServer {
	m := &MockControllerServer{
		device:   device,
		raw:      make(map[int]int),
		rejected: make(map[int]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /download_config", m.handleDownloadConfig)
	mux.HandleFunc("GET /blind/{id}/open", m.handleLimit(func(b controller.BlindConfig) int { return b.Open }))
	mux.HandleFunc("GET /blind/{id}/close", m.handleLimit(func(b controller.BlindConfig) int { return b.Close }))
	mux.HandleFunc("GET /blind/{id}/temp/{raw}", m.handleTemp)
	mux.HandleFunc("GET /blind/{id}/position", m.handlePosition)

	m.server = httptest.NewServer(m.record(mux))
	return m
}

// URL returns the server root, usable as a controller host
func (m *MockControllerServer) URL() string {
	return m.server.URL
}

// Close shuts the server down
func (m *MockControllerServer) Close() {
	m.server.Close()
}

// Reject makes every command for a blind answer success:false with reason.
// An empty reason clears it.
func (m *MockControllerServer) Reject(id int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason == "" {
		delete(m.rejected, id)
		return
	}
	m.rejected[id] = reason
}

// SetDown makes every request fail with 503 until cleared
func (m *MockControllerServer) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// SetRaw places a blind at a raw coordinate
func (m *MockControllerServer) SetRaw(id, raw int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[id] = raw
}

// Raw returns a blind's raw coordinate and whether it is known
func (m *MockControllerServer) Raw(id int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.raw[id]
	return raw, ok
}

// Requests returns the request paths served so far
func (m *MockControllerServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func (m *MockControllerServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.URL.Path)
		down := m.down
		m.mu.Unlock()

		if down {
			http.Error(w, "controller offline", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockControllerServer) handleDownloadConfig(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	writeJSON(w, m.device)
}

func (m *MockControllerServer) handleLimit(limit func(controller.BlindConfig) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.blind(w, r)
		if !ok {
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if reason, rejected := m.rejected[id]; rejected {
			writeJSON(w, map[string]interface{}{"success": false, "error": reason})
			return
		}
		m.raw[id] = limit(m.device[id])
		writeJSON(w, map[string]interface{}{"success": true})
	}
}

func (m *MockControllerServer) handleTemp(w http.ResponseWriter, r *http.Request) {
	id, ok := m.blind(w, r)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r.PathValue("raw") == "end" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if reason, rejected := m.rejected[id]; rejected {
		writeJSON(w, map[string]interface{}{"success": false, "error": reason})
		return
	}

	raw, err := strconv.Atoi(r.PathValue("raw"))
	if err != nil {
		writeJSON(w, map[string]interface{}{"success": false, "error": "invalid position"})
		return
	}
	m.raw[id] = raw
	writeJSON(w, map[string]interface{}{"success": true, "actual_position": raw})
}

func (m *MockControllerServer) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := m.blind(w, r)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if raw, known := m.raw[id]; known {
		writeJSON(w, map[string]interface{}{"current_position": raw})
		return
	}
	writeJSON(w, map[string]interface{}{"current_position": nil})
}

// blind resolves the {id} path value, answering 404 for blinds the device does not have
func (m *MockControllerServer) blind(w http.ResponseWriter, r *http.Request) (int, bool) {
	if id, err := strconv.Atoi(r.PathValue("id")); err == nil {
		m.mu.Lock()
		_, known := m.device[id]
		m.mu.Unlock()
		if known {
			return id, true
		}
	}
	http.NotFound(w, r)
	return 0, false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
