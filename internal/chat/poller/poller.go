// Package poller keeps a local copy of one chat room's messages in sync with the server
// by refetching the full history on a fixed cadence.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

const DefaultInterval = 3 * time.Second

var (
	ErrNoRoomSelected = errors.New("no chat room selected")
	ErrRoomChanged    = errors.New("chat room changed before the refresh completed")
)

type Client interface {
	FetchMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, roomID string, req models.ChatMessageRequest) (*models.ChatMessage, error)
}

type Options struct {
	Interval time.Duration
	Sender   models.ChatMessageRequest // SenderUsername, SenderEmail and IsStaff used by Send
	// OnUpdate runs on the polling goroutine after each successful fetch.
	// It must not call Select, Deselect or Close.
	OnUpdate func(roomID string, messages []models.ChatMessage)
	OnError  func(roomID string, err error)
}

// Poller owns at most one polling goroutine, bound to the selected room.
type Poller struct {
	client Client
	opts   Options
	log    *logger.Logger

	switchMu sync.Mutex // serializes Select/Deselect

	mu       sync.Mutex
	current  *Subscription
	messages []models.ChatMessage
}

// Subscription is the lifetime of one room selection.
type Subscription struct {
	RoomID string

	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan chan struct{}
}

// Cancel stops polling and returns once the polling goroutine has exited.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func New(client Client, log *logger.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Poller{client: client, opts: opts, log: log}
}

// Select switches polling to roomID. Any previous timer is stopped before the new one starts.
func (p *Poller) Select(roomID string) *Subscription {
	p.switchMu.Lock()
	defer p.switchMu.Unlock()

	p.stopCurrent()

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		RoomID:  roomID,
		cancel:  cancel,
		done:    make(chan struct{}),
		refresh: make(chan chan struct{}),
	}

	p.mu.Lock()
	p.current = sub
	p.messages = nil
	p.mu.Unlock()

	p.log.LogChat("SELECT", roomID, fmt.Sprintf("polling every %s", p.opts.Interval))
	go p.run(ctx, sub)
	return sub
}

// Deselect stops polling and clears the local list.
func (p *Poller) Deselect() {
	p.switchMu.Lock()
	defer p.switchMu.Unlock()
	p.stopCurrent()
}

func (p *Poller) Close() {
	p.Deselect()
}

func (p *Poller) stopCurrent() {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.messages = nil
	p.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		p.log.LogChat("DESELECT", prev.RoomID, "polling stopped")
	}
}

// RoomID returns the selected room, or "" when idle.
func (p *Poller) RoomID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.RoomID
}

// Messages returns a copy of the latest fetched list, oldest first.
func (p *Poller) Messages() []models.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ChatMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Send posts text to the selected room and returns after the list has been refetched.
func (p *Poller) Send(ctx context.Context, text string) (*models.ChatMessage, error) {
	p.mu.Lock()
	sub := p.current
	p.mu.Unlock()
	if sub == nil {
		return nil, ErrNoRoomSelected
	}

	req := p.opts.Sender
	req.Message = text
	msg, err := p.client.SendMessage(ctx, sub.RoomID, req)
	if err != nil {
		return nil, err
	}

	ack := make(chan struct{})
	select {
	case sub.refresh <- ack:
	case <-sub.done:
		return msg, ErrRoomChanged
	case <-ctx.Done():
		return msg, ctx.Err()
	}

	select {
	case <-ack:
		return msg, nil
	case <-sub.done:
		return msg, ErrRoomChanged
	case <-ctx.Done():
		return msg, ctx.Err()
	}
}

// run is the only goroutine that fetches for sub, so updates are applied in order.
func (p *Poller) run(ctx context.Context, sub *Subscription) {
	defer close(sub.done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.fetch(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, sub)
		case ack := <-sub.refresh:
			p.fetch(ctx, sub)
			close(ack)
		}
	}
}

func (p *Poller) fetch(ctx context.Context, sub *Subscription) {
	messages, err := p.client.FetchMessages(ctx, sub.RoomID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Warn("CHAT", fmt.Sprintf("Failed to fetch messages for %s: %v", sub.RoomID, err))
		if p.opts.OnError != nil {
			p.opts.OnError(sub.RoomID, err)
		}
		return
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	p.mu.Lock()
	if p.current != sub {
		p.mu.Unlock()
		return
	}
	p.messages = messages
	p.mu.Unlock()

	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(sub.RoomID, messages)
	}
}
