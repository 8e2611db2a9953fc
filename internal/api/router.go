// Package api serves the chart over HTTP: indicator management as REST,
// one-shot PNG frames, and interactive chart sessions over websocket.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all routes. health serves GET /health.
func SetupRoutes(h *Handler, health http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.Handle("/health", health).Methods("GET")
	r.HandleFunc("/ws", h.ServeWS)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/indicators/catalog", h.Catalog).Methods("GET")
	api.HandleFunc("/indicators", h.ListIndicators).Methods("GET")
	api.HandleFunc("/indicators", h.AddIndicator).Methods("POST")
	api.HandleFunc("/indicators/{id}", h.UpdateIndicator).Methods("PATCH")
	api.HandleFunc("/indicators/{id}", h.RemoveIndicator).Methods("DELETE")
	api.HandleFunc("/indicators/{id}/toggle", h.ToggleIndicator).Methods("POST")
	api.HandleFunc("/chart.png", h.ChartPNG).Methods("GET")
	api.HandleFunc("/stats", h.Stats).Methods("GET")
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
