// Package debug serves a read-only JSON view of a bootstrapped container.
package debug

import (
	"encoding/json"
	"net/http"

	"github.com/GoCodeAlone/extpoint"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Source provides the data served by the router.
type Source interface {
	Definitions() []extpoint.DefinitionInfo
	// Processors returns the effective instance processor chain, by type.
	Processors() []string
	Report() extpoint.Report
}

// ProcessorsResponse is the body of GET /processors.
type ProcessorsResponse struct {
	// Installed lists install points by name, duplicates included.
	Installed []string `json:"installed"`
	// Effective lists processors in invocation order.
	Effective []string `json:"effective"`
}

// NewRouter returns a router with:
//
//	GET /definitions
//	GET /definitions/{name}
//	GET /processors
//	GET /report
func NewRouter(src Source) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/definitions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Definitions())
	})
	r.Get("/definitions/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		for _, info := range src.Definitions() {
			if info.Name == name {
				writeJSON(w, http.StatusOK, info)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "definition not found: " + name})
	})
	r.Get("/processors", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ProcessorsResponse{
			Installed: src.Report().Chain,
			Effective: src.Processors(),
		})
	})
	r.Get("/report", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Report())
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
