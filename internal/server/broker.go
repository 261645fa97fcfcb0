package server

import (
	"encoding/json"
	"sync"
)

// Event is the payload published to a player's subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	eventState        = "state"
	eventRun          = "run"
	eventNotification = "notification"
	eventTerritory    = "territory"
)

// Broker is an in-process pub/sub for SSE and WebSocket events, keyed by
// player ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the player.
func (b *Broker) Subscribe(playerID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[playerID] == nil {
		b.subs[playerID] = make(map[chan []byte]struct{})
	}
	b.subs[playerID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(playerID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[playerID], ch)
	if len(b.subs[playerID]) == 0 {
		delete(b.subs, playerID)
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(playerID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.mu.RLock()
	for ch := range b.subs[playerID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// PublishAll sends an event to every subscribed player.
func (b *Broker) PublishAll(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.mu.RLock()
	for _, subs := range b.subs {
		for ch := range subs {
			select {
			case ch <- data:
			default:
			}
		}
	}
	b.mu.RUnlock()
}

func (b *Broker) Subscribers(playerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[playerID])
}
