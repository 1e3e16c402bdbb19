package ws

import (
	"sync"

	"github.com/julo/lendcore/internal/observability"
)

// Hub routes realtime loan events to the sockets subscribed to an account
// channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Subscribe(channel string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = map[*Client]struct{}{}
		h.channels[channel] = members
	}
	if _, dup := members[client]; dup {
		return
	}
	members[client] = struct{}{}
	client.addChannel(channel)
	observability.AddWSSubscriptions(1)
}

// UnsubscribeAll drops the client from every channel it joined. Empty
// channels are removed.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for _, channel := range client.listChannels() {
		members, ok := h.channels[channel]
		if !ok {
			continue
		}
		if _, ok := members[client]; ok {
			delete(members, client)
			removed++
		}
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	observability.AddWSSubscriptions(-removed)
}

// Publish returns how many clients were handed the payload.
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(payload)
	}
	observability.RecordWSDeliveries(len(targets))
	return len(targets)
}

func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func AccountLoansChannel(accountID string) string {
	return "account:loans:" + accountID
}
