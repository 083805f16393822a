// Package sse fans pairing notices out to connected event-stream clients.
package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/tether-go/internal/service"
)

const (
	HeartbeatInterval = 30 * time.Second

	clientBuffer = 16
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Events chan Event
	Done   chan struct{}
}

// Broker is an in-process publisher. Slow clients drop events rather than
// block the publisher.
type Broker struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[*Client]struct{})}
}

func (b *Broker) Subscribe() *Client {
	client := &Client{
		Events: make(chan Event, clientBuffer),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		close(client.Done)
	} else {
		b.clients[client] = struct{}{}
	}
	count := len(b.clients)
	b.mu.Unlock()

	log.Info().Int("clientCount", count).Msg("sse client subscribed")
	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[client]; !ok {
		return
	}
	delete(b.clients, client)
	close(client.Done)

	log.Info().Int("clientCount", len(b.clients)).Msg("sse client unsubscribed")
}

func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().Str("type", event.Type).Msg("client event buffer full, dropping event")
		}
	}
}

// Notify publishes notice as a "notice" event.
func (b *Broker) Notify(ctx context.Context, notice service.Notice) {
	data, err := json.Marshal(notice)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal notice")
		return
	}
	b.Publish(Event{Type: "notice", Data: data})
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for client := range b.clients {
		close(client.Done)
	}
	b.clients = make(map[*Client]struct{})
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
