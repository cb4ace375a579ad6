// Package web provides the HTTP interface of the pool controller: readiness,
// manual valve toggle, status documents and metrics.
package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweeney/pool-controller/internal/status"
)

// ReadyText is the body of GET /.
const ReadyText = "Pool Controller Ready"

// Toggler hands a manual toggle to the control loop and waits until it has
// been applied.
type Toggler interface {
	RequestToggle(ctx context.Context) error
}

// Server serves the controller over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	toggler    Toggler
}

// New creates a Server that reads state from tracker and routes toggles to
// toggler. metrics may be nil.
func New(addr string, tracker *status.Tracker, toggler Toggler, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, toggler: toggler}

	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/valve/toggle", s.handleToggle).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, ReadyText)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.toggler.RequestToggle(r.Context()); err != nil {
		log.Printf("http: toggle not applied: %v", err)
		http.Error(w, "toggle not applied", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Valve toggled")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatStatus(s.tracker.Snapshot()))
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}
