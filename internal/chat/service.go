package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

const (
	MessageTypeText  = "text"
	maxMessageLength = 2000
)

type DBLayer interface {
	ListActiveRooms(ctx context.Context) ([]models.ChatRoom, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	ListMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	CreateMessage(ctx context.Context, msg models.ChatMessage) error
}

// Broadcaster pushes stored messages to live stream subscribers. Optional.
type Broadcaster interface {
	EmitMessage(msg models.ChatMessage)
}

type Service struct {
	DB          DBLayer
	Broadcaster Broadcaster
	Logger      *logger.Logger
	now         func() time.Time
}

func NewService(db DBLayer, broadcaster Broadcaster, log *logger.Logger) *Service {
	return &Service{DB: db, Broadcaster: broadcaster, Logger: log, now: time.Now}
}

func (s *Service) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	rooms, err := s.DB.ListActiveRooms(ctx)
	if err != nil {
		s.Logger.Error("CHAT", fmt.Sprintf("Failed to list rooms: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return rooms, nil
}

// ListMessages returns the full history of a room, oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}

	messages, err := s.DB.ListMessages(ctx, roomID)
	if err != nil {
		s.Logger.Error("CHAT", fmt.Sprintf("Failed to list messages for %s: %v", roomID, err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return messages, nil
}

// SendMessage stores one message. Staff authorship is assumed unless is_staff is false.
func (s *Service) SendMessage(ctx context.Context, roomID string, req models.ChatMessageRequest) (*models.ChatMessage, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageLength)
	}
	if strings.TrimSpace(req.SenderUsername) == "" {
		return nil, fmt.Errorf("%w: sender_username is required", ErrValidation)
	}
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}

	isStaff := true
	if req.IsStaff != nil {
		isStaff = *req.IsStaff
	}

	msg := models.ChatMessage{
		ID:             utils.NewID(),
		RoomID:         roomID,
		SenderUsername: strings.TrimSpace(req.SenderUsername),
		SenderEmail:    strings.TrimSpace(req.SenderEmail),
		Message:        text,
		IsStaff:        isStaff,
		MessageType:    MessageTypeText,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.DB.CreateMessage(ctx, msg); err != nil {
		s.Logger.Error("CHAT", fmt.Sprintf("Failed to store message in %s: %v", roomID, err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.Logger.LogChat("SEND", roomID, "message from "+msg.SenderUsername)
	if s.Broadcaster != nil {
		s.Broadcaster.EmitMessage(msg)
	}
	return &msg, nil
}

func (s *Service) requireRoom(ctx context.Context, roomID string) error {
	exists, err := s.DB.RoomExists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !exists {
		return ErrRoomNotFound
	}
	return nil
}
