package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ChatRoom struct {
	bun.BaseModel `bun:"table:chat_rooms,alias:cr"`

	ID           string            `bun:"id,pk" json:"id"`
	Name         string            `bun:"name,notnull" json:"name"`
	Type         string            `bun:"type,notnull" json:"type"`
	IsActive     bool              `bun:"is_active,notnull" json:"is_active"`
	CreatedAt    time.Time         `bun:"created_at,notnull" json:"created_at"`
	Participants []ChatParticipant `bun:"rel:has-many,join:id=room_id" json:"chat_participants"`
}

type ChatParticipant struct {
	bun.BaseModel `bun:"table:chat_participants,alias:cp"`

	ID       string     `bun:"id,pk" json:"id"`
	RoomID   string     `bun:"room_id,notnull" json:"room_id"`
	Username string     `bun:"username,notnull" json:"username"`
	Email    string     `bun:"email" json:"email"`
	IsStaff  bool       `bun:"is_staff,notnull" json:"is_staff"`
	IsOnline bool       `bun:"is_online,notnull" json:"is_online"`
	LastSeen *time.Time `bun:"last_seen" json:"last_seen,omitempty"`
}

// ChatMessage is immutable once stored.
type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:cm"`

	ID             string    `bun:"id,pk" json:"id"`
	RoomID         string    `bun:"room_id,notnull" json:"room_id"`
	SenderUsername string    `bun:"sender_username,notnull" json:"sender_username"`
	SenderEmail    string    `bun:"sender_email" json:"sender_email"`
	Message        string    `bun:"message,notnull" json:"message"`
	IsStaff        bool      `bun:"is_staff,notnull" json:"is_staff"`
	MessageType    string    `bun:"message_type,notnull" json:"message_type"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ChatMessageRequest struct {
	Message        string `json:"message"`
	SenderUsername string `json:"sender_username"`
	SenderEmail    string `json:"sender_email"`
	IsStaff        *bool  `json:"is_staff,omitempty"`
}
