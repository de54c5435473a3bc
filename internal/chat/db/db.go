package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ROOMS ----------------

// ListActiveRooms → active rooms with participants, newest first
func (d *DB) ListActiveRooms(ctx context.Context) ([]models.ChatRoom, error) {
	rooms := []models.ChatRoom{}
	err := d.Bun.NewSelect().
		Model(&rooms).
		Relation("Participants").
		Where("cr.is_active = ?", true).
		Order("cr.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (d *DB) RoomExists(ctx context.Context, roomID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.ChatRoom)(nil)).
		Where("cr.id = ?", roomID).
		Exists(ctx)
}

func (d *DB) CreateRoom(ctx context.Context, room models.ChatRoom) error {
	_, err := d.Bun.NewInsert().Model(&room).Exec(ctx)
	return err
}

func (d *DB) AddParticipant(ctx context.Context, p models.ChatParticipant) error {
	_, err := d.Bun.NewInsert().Model(&p).Exec(ctx)
	return err
}

// ---------------- MESSAGES ----------------

// ListMessages → oldest first; ids are time-ordered so they break created_at ties
func (d *DB) ListMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	err := d.Bun.NewSelect().
		Model(&messages).
		Where("cm.room_id = ?", roomID).
		Order("cm.created_at ASC", "cm.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *DB) CreateMessage(ctx context.Context, msg models.ChatMessage) error {
	_, err := d.Bun.NewInsert().Model(&msg).Exec(ctx)
	return err
}
