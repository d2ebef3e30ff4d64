// Package devicetest provides an in-process stand-in for the serial backend,
// answering with the {success, info, data} shapes the real one uses.
package devicetest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
)

// Request is one call received by the backend.
type Request struct {
	Method      string
	Path        string
	ContentType string
	Body        string
}

// Backend is a fake serial backend.
type Backend struct {
	*httptest.Server

	mu        sync.Mutex
	connected bool
	requests  []Request
	overrides map[string]http.HandlerFunc
	readings  map[int]float64
}

// New starts a fake backend. Call Close when done.
func New() *Backend {
	b := &Backend{
		overrides: make(map[string]http.HandlerFunc),
		readings:  map[int]float64{0: 0.1, 1: 0.2, 2: 0.3, 3: 0.4},
	}

	r := mux.NewRouter()
	r.Use(b.record)
	r.HandleFunc("/isConnected", b.handleIsConnected).Methods(http.MethodGet)
	r.HandleFunc("/connect", b.handleConnect).Methods(http.MethodGet)
	r.HandleFunc("/reconnect", b.handleConnect).Methods(http.MethodGet)
	r.HandleFunc("/disconnect", b.handleDisconnect).Methods(http.MethodGet)
	r.HandleFunc("/serialComtest", b.guard(b.handleComtest)).Methods(http.MethodGet)
	r.HandleFunc("/serialVSet", b.guard(b.handleVSet)).Methods(http.MethodPost)
	r.HandleFunc("/serialVRead", b.guard(b.handleVRead)).Methods(http.MethodPost)
	r.HandleFunc("/serialVerbose", b.guard(b.handleVerbose)).Methods(http.MethodPost)
	r.HandleFunc("/serialScript", b.guard(b.handleScript)).Methods(http.MethodPost)
	r.HandleFunc("/calibration/index", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<div class=\"calibration\">calibration</div>")
	}).Methods(http.MethodGet)

	b.Server = httptest.NewServer(r)
	return b
}

// SetConnected sets the serial connection state.
func (b *Backend) SetConnected(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = v
}

// SetReading sets the value returned for an analog pin.
func (b *Backend) SetReading(pin int, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readings[pin] = v
}

// Override replaces the handler of a path.
func (b *Backend) Override(path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[path] = h
}

// Requests returns the calls received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestsTo returns the calls received for path.
func (b *Backend) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(body),
		})
		override := b.overrides[r.URL.Path]
		b.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		if override != nil {
			override(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		connected := b.connected
		b.mu.Unlock()
		if !connected {
			reply(w, false, "The serial object is disconnected", nil)
			return
		}
		next(w, r)
	}
}

func (b *Backend) handleIsConnected(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b.connected)
}

func (b *Backend) handleConnect(w http.ResponseWriter, r *http.Request) {
	b.SetConnected(true)
	io.WriteString(w, "Connected")
}

func (b *Backend) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	b.SetConnected(false)
	io.WriteString(w, "Disconnected")
}

func (b *Backend) handleComtest(w http.ResponseWriter, r *http.Request) {
	reply(w, true, nil, []map[string]interface{}{{"data": []string{}, "msg": []string{"OK:ready"}}})
}

func (b *Backend) handleVSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pins     []int `json:"pins"`
		Values   []int `json:"values"`
		Settling int   `json:"settling"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Pins) != len(req.Values) {
		reply(w, false, "Inconsistent command", nil)
		return
	}
	reply(w, true, nil, nil)
}

func (b *Backend) handleVRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pins []int `json:"pins"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	values := make([]float64, 0, len(req.Pins))
	for _, p := range req.Pins {
		values = append(values, b.readings[p])
	}
	b.mu.Unlock()
	reply(w, true, nil, values)
}

func (b *Backend) handleVerbose(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply(w, true, nil, nil)
}

func (b *Backend) handleScript(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, _ := req["fname"].(string)
	if name == "missing" {
		reply(w, false, "Error importing the script", nil)
		return
	}
	reply(w, true, "Script "+name+" run successfully", nil)
}

func reply(w http.ResponseWriter, success bool, info interface{}, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"info":    info,
		"data":    data,
	})
}
