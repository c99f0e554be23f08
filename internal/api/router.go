package api

import (
	"net/http"

	"syncpad/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, tokens middleware.TokenValidator) *mux.Router {
	r := mux.NewRouter()

	// Global middleware: tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// Public endpoints
	public := r.PathPrefix("/api").Subrouter()
	public.HandleFunc("/auth/register", h.Register).Methods("POST")
	public.HandleFunc("/auth/login", h.Login).Methods("POST")
	public.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Directory endpoints, all behind the bearer token
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(tokens))

	api.HandleFunc("/documents", h.ListDocuments).Methods("GET")
	api.HandleFunc("/documents", h.CreateDocument).Methods("POST")
	api.HandleFunc("/documents/{id}", h.GetDocument).Methods("GET")
	api.HandleFunc("/documents/{id}", h.UpdateDocument).Methods("PUT")
	api.HandleFunc("/documents/{id}", h.DeleteDocument).Methods("DELETE")

	api.HandleFunc("/documents/{id}/collaborators", h.AddCollaborator).Methods("POST")
	api.HandleFunc("/documents/{id}/collaborators/{userId}", h.RemoveCollaborator).Methods("DELETE")

	api.HandleFunc("/documents/{id}/versions", h.ListVersions).Methods("GET")
	api.HandleFunc("/documents/{id}/revert/{versionIndex}", h.RevertDocument).Methods("POST")

	// WebSocket route; the handshake gate does its own token check
	r.HandleFunc("/ws", h.HandleWebSocket)

	return r
}
