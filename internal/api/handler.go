package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mhutchinson/chatrelay/internal/chat"
	"github.com/mhutchinson/chatrelay/internal/store"
)

type Handler struct {
	store  *store.Store
	chat   *chat.Service
	logger *zap.Logger
}

func NewHandler(st *store.Store, chatService *chat.Service, logger *zap.Logger) *Handler {
	return &Handler{
		store:  st,
		chat:   chatService,
		logger: logger,
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversation_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "healthy", Message: "chatrelay API is running"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "server is running"})
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.CreateConversation(r.Context())
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	convID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), convID)
	if err != nil {
		h.logger.Error("failed to list messages",
			zap.Int64("conversation_id", convID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	reply, err := h.chat.Send(r.Context(), req.ConversationID, req.Message)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("chat turn failed",
			zap.Int64("conversation_id", req.ConversationID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get response")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	convID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	err = h.store.DeleteConversation(r.Context(), convID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete conversation",
			zap.Int64("conversation_id", convID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
