// Package api serves the estimator's current state over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/flowfusion/internal/fusion"
	"github.com/banshee-data/flowfusion/internal/fusiondb"
)

// Server exposes JSON endpoints for the running estimator.
type Server struct {
	node *fusion.Node
	db   *fusiondb.DB // optional
}

// NewServer creates an API server for the given node. db may be nil when the
// service runs without a store.
func NewServer(node *fusion.Node, db *fusiondb.DB) *Server {
	return &Server{node: node, db: db}
}

// ServeMux returns the route table for the API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/estimate", s.estimateHandler)
	mux.HandleFunc("/runs", s.runsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.node.Snapshot())
}

func (s *Server) runsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "No store configured", http.StatusNotFound)
		return
	}
	runs, err := s.db.ListRuns()
	if err != nil {
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
