package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/chat"
	chatdb "ms-storefront/internal/chat/db"
	"ms-storefront/internal/database/dbtest"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

func (b *recordingBroadcaster) EmitMessage(msg models.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func setup(t *testing.T) (*chat.Service, *chatdb.DB, *recordingBroadcaster) {
	t.Helper()
	store := &chatdb.DB{Bun: dbtest.New(t)}
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateRoom(ctx, models.ChatRoom{ID: "r-old", Name: "Order 1001", Type: "support", IsActive: true, CreatedAt: base}))
	require.NoError(t, store.CreateRoom(ctx, models.ChatRoom{ID: "r-new", Name: "Order 1002", Type: "support", IsActive: true, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.CreateRoom(ctx, models.ChatRoom{ID: "r-closed", Name: "Order 999", Type: "support", IsActive: false, CreatedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, store.AddParticipant(ctx, models.ChatParticipant{ID: "p1", RoomID: "r-new", Username: "buyer", Email: "buyer@example.com"}))
	require.NoError(t, store.AddParticipant(ctx, models.ChatParticipant{ID: "p2", RoomID: "r-new", Username: "admin", IsStaff: true, IsOnline: true}))

	b := &recordingBroadcaster{}
	return chat.NewService(store, b, logger.Nop()), store, b
}

func TestListRooms_ActiveNewestFirstWithParticipants(t *testing.T) {
	svc, _, _ := setup(t)

	rooms, err := svc.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r-new", rooms[0].ID)
	assert.Equal(t, "r-old", rooms[1].ID)
	assert.Len(t, rooms[0].Participants, 2)
	assert.Empty(t, rooms[1].Participants)
}

func TestSendThenList_PreservesOrder(t *testing.T) {
	svc, _, b := setup(t)
	ctx := context.Background()

	for _, text := range []string{"A", "B"} {
		_, err := svc.SendMessage(ctx, "r-new", models.ChatMessageRequest{Message: text, SenderUsername: "admin"})
		require.NoError(t, err)
	}

	messages, err := svc.ListMessages(ctx, "r-new")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "A", messages[0].Message)
	assert.Equal(t, "B", messages[1].Message)
	assert.True(t, messages[0].IsStaff)
	assert.Equal(t, chat.MessageTypeText, messages[0].MessageType)
	assert.Len(t, b.messages, 2)
}

func TestSendMessage_Validation(t *testing.T) {
	svc, _, b := setup(t)
	ctx := context.Background()
	notStaff := false

	_, err := svc.SendMessage(ctx, "r-new", models.ChatMessageRequest{Message: "   ", SenderUsername: "admin"})
	assert.ErrorIs(t, err, chat.ErrValidation)

	_, err = svc.SendMessage(ctx, "r-new", models.ChatMessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, chat.ErrValidation)

	_, err = svc.SendMessage(ctx, "nope", models.ChatMessageRequest{Message: "hi", SenderUsername: "admin"})
	assert.ErrorIs(t, err, chat.ErrRoomNotFound)

	msg, err := svc.SendMessage(ctx, "r-new", models.ChatMessageRequest{Message: "from buyer", SenderUsername: "buyer", IsStaff: &notStaff})
	require.NoError(t, err)
	assert.False(t, msg.IsStaff)
	assert.Len(t, b.messages, 1)
}

func TestListMessages_UnknownRoom(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.ListMessages(context.Background(), "nope")
	assert.ErrorIs(t, err, chat.ErrRoomNotFound)
}
