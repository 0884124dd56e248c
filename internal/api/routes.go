package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter assembles the HTTP surface with its middleware chain.
func NewRouter(h *Handler, logger *zap.Logger, allowedOrigins []string) http.Handler {
	mux := chi.NewRouter()

	mux.Use(Recoverer(logger))
	mux.Use(RequestID())
	mux.Use(AccessLog(logger))
	mux.Use(CORS(allowedOrigins))

	mux.Get("/", h.Root)
	mux.Get("/api/health", h.Health)

	mux.Post("/api/conversations", h.CreateConversation)
	mux.Get("/api/conversations/{id}/messages", h.GetMessages)
	mux.Delete("/api/conversations/{id}", h.DeleteConversation)
	mux.Post("/api/chat", h.Chat)

	return mux
}
