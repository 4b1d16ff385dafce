package app

import (
	"net/http"

	_ "github.com/calbot/calbot/docs"
	"github.com/calbot/calbot/internal/rest"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Events
	r.HandleFunc("/api/events", deps.EventHandler.List).Methods("GET")
	r.HandleFunc("/api/events", deps.EventHandler.Create).Methods("POST")
	r.HandleFunc("/api/events.ics", deps.EventHandler.ExportICS).Methods("GET")
	r.HandleFunc("/api/events/{id:[0-9]+}", deps.EventHandler.Get).Methods("GET")
	r.HandleFunc("/api/events/{id:[0-9]+}", deps.EventHandler.Update).Methods("PUT")
	r.HandleFunc("/api/events/{id:[0-9]+}", deps.EventHandler.Delete).Methods("DELETE")

	r.HandleFunc("/health", Health).Methods("GET")

	// Swagger
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
}

// Health godoc
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func Health(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}
