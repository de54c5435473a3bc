package sse

import (
	"context"
	"sync"

	"ms-storefront/internal/models"
)

const clientBuffer = 10

// RoomEventEmitter fans newly stored chat messages out to the SSE clients watching a room.
type RoomEventEmitter struct {
	clients map[string][]chan models.ChatMessage
	mu      sync.RWMutex
}

func NewRoomEventEmitter() *RoomEventEmitter {
	return &RoomEventEmitter{
		clients: make(map[string][]chan models.ChatMessage),
	}
}

// Subscribe registers a client for roomID. The channel is closed once ctx is done.
func (e *RoomEventEmitter) Subscribe(ctx context.Context, roomID string) <-chan models.ChatMessage {
	clientChan := make(chan models.ChatMessage, clientBuffer)

	e.mu.Lock()
	e.clients[roomID] = append(e.clients[roomID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(roomID, clientChan)
	}()

	return clientChan
}

// EmitMessage never blocks; a client whose buffer is full misses the event and
// catches up on its next full fetch.
func (e *RoomEventEmitter) EmitMessage(msg models.ChatMessage) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[msg.RoomID] {
		select {
		case clientChan <- msg:
		default:
		}
	}
}

func (e *RoomEventEmitter) remove(roomID string, clientChan chan models.ChatMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[roomID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[roomID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[roomID]) == 0 {
		delete(e.clients, roomID)
	}
}

// ClientCount returns the number of clients currently watching roomID.
func (e *RoomEventEmitter) ClientCount(roomID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[roomID])
}
