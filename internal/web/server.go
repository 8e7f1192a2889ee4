// Package web serves the sequencer's live state over HTTP: the output lines
// and their levels, the event counter, the latest input reading and the
// broker connection. The same snapshot backs the HTML page, the JSON
// document and the health check.
package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sweeney/gpio-sequencer/internal/status"
)

// Server exposes one status.Tracker. Routes:
//
//	/, /index.html  status page
//	/index.json     status document (same shape as the MQTT status events)
//	/healthz        200 while the engine runs or stopped cleanly, 503 after a fault
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server on addr that reads state from tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: readOnly(mux),
	}
	return s
}

// Handler returns the router, for mounting under httptest or another mux.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// readOnly rejects anything but GET and HEAD, and keeps clients from caching
// line state that changes every cycle.
func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case snap.Fault != "":
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "fault: %s\n", snap.Fault)
	case snap.Running:
		fmt.Fprintf(w, "ok: cycle %d, counter %d\n", snap.Cycles, snap.Counter)
	default:
		fmt.Fprintln(w, "stopped")
	}
}
