package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/chat"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type ChatService interface {
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	ListMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, roomID string, req models.ChatMessageRequest) (*models.ChatMessage, error)
}

type Handler struct {
	Service ChatService
	Logger  *logger.Logger
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Service.ListRooms(r.Context())
	if err != nil {
		writeServiceError(w, h.Logger, err, "Failed to fetch chat rooms")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	messages, err := h.Service.ListMessages(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, h.Logger, err, "Failed to fetch messages")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// SendMessage stores a message. The sender defaults to the logged-in administrator.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	var req models.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", "message is required")
		return
	}
	if account := auth.AdminFromContext(r.Context()); account != nil {
		if req.SenderUsername == "" {
			req.SenderUsername = account.Username
		}
		if req.SenderEmail == "" {
			req.SenderEmail = account.Email
		}
	}

	msg, err := h.Service.SendMessage(r.Context(), roomID, req)
	if err != nil {
		writeServiceError(w, h.Logger, err, "Failed to send message")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": msg})
}

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, chat.ErrRoomNotFound):
		utils.WriteError(w, http.StatusNotFound, "Chat room not found", "Chat room not found")
	default:
		log.Error("API", fallback+": "+err.Error())
		utils.WriteError(w, http.StatusInternalServerError, fallback, fallback)
	}
}
