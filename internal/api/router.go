package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Session routes
			r.Post("/sessions", apiHandler.CreateSessionHandler)
			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Get("/sessions/{sessionID}", apiHandler.GetSessionDetailsHandler)
			r.Delete("/sessions/{sessionID}", apiHandler.DeleteSessionHandler)
			r.Post("/sessions/{sessionID}/ask", apiHandler.AskHandler)

			// Message feedback and export routes
			r.Post("/messages/{messageID}/feedback", apiHandler.MessageFeedbackHandler)
			r.Get("/messages/{messageID}/export", apiHandler.ExportMessageHandler)

			// Audit trail
			r.Get("/actions", apiHandler.ListActionsHandler)
		})
	})

	return r
}
