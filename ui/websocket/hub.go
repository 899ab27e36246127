package websocket

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/AzielCF/az-admin/infrastructure/valkey"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	EventHealthAlerts    = "HEALTH_ALERTS"
	EventSettingsUpdated = "SETTINGS_UPDATED"

	broadcastBuffer  = 64
	broadcastChannel = "ws_broadcast"
)

// Event is the frame pushed to dashboards and, for distributed events, to the
// other instances sharing the Valkey deployment.
type Event struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Result   any    `json:"result,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
}

type conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type outgoing struct {
	event  Event
	remote bool
}

// Hub owns the set of connected dashboards. All connection bookkeeping happens
// on the Run goroutine.
type Hub struct {
	clients    map[conn]struct{}
	register   chan conn
	unregister chan conn
	broadcast  chan outgoing
	done       chan struct{}
	connected  atomic.Int64

	vk       *valkey.Client
	serverID string

	mu        sync.RWMutex
	listeners map[string][]func(Event)
}

// NewHub builds a hub. With a nil client events stay on this instance.
func NewHub(client *valkey.Client, serverID string) *Hub {
	h := &Hub{
		clients:    make(map[conn]struct{}),
		register:   make(chan conn),
		unregister: make(chan conn),
		broadcast:  make(chan outgoing, broadcastBuffer),
		done:       make(chan struct{}),
		vk:         client,
		serverID:   serverID,
		listeners:  make(map[string][]func(Event)),
	}
	return h
}

// OnRemote registers fn for events with the given code published by another
// instance.
func (h *Hub) OnRemote(code string, fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[code] = append(h.listeners[code], fn)
}

// Connected reports how many dashboards are attached to this instance.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// Publish sends ev to local dashboards and to the other instances.
func (h *Hub) Publish(ev Event) {
	h.enqueue(outgoing{event: ev, remote: true})
}

// PublishLocal sends ev to the dashboards of this instance only.
func (h *Hub) PublishLocal(ev Event) {
	h.enqueue(outgoing{event: ev})
}

// add hands c to the Run loop. It reports false once the hub has stopped.
func (h *Hub) add(c conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) enqueue(msg outgoing) {
	select {
	case h.broadcast <- msg:
	default:
		logrus.WithField("code", msg.event.Code).Warn("[WS] broadcast buffer full, event dropped")
	}
}

// Run processes registrations and broadcasts until ctx ends, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.vk != nil {
		h.startSubscriber(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Add(1)
			logrus.Debug("[WS] Connection registered")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.connected.Add(-1)
			}
			logrus.Debug("[WS] Connection unregistered")

		case msg := <-h.broadcast:
			h.broadcastToLocal(msg.event)
			if msg.remote && h.vk != nil {
				h.publishToValkey(ctx, msg.event)
			}
		}
	}
}

func (h *Hub) broadcastToLocal(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for c := range h.clients {
		if err := c.WriteMessage(textMessage, payload); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c conn) {
	_ = c.WriteMessage(closeMessage, []byte{})
	_ = c.Close()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.connected.Add(-1)
	}
}

func (h *Hub) publishToValkey(ctx context.Context, ev Event) {
	ev.SenderID = h.serverID

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	if err := h.vk.Publish(ctx, broadcastChannel, string(data)); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func (h *Hub) startSubscriber(ctx context.Context) {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := h.vk.Subscribe(ctx, broadcastChannel, func(message string) {
			h.handleRemote([]byte(message))
		})
		if err != nil && ctx.Err() == nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

// handleRemote applies an event received from another instance.
func (h *Hub) handleRemote(payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		logrus.Warnf("[WS] Ignoring malformed remote event: %v", err)
		return
	}
	// Our own publications come back through the subscription.
	if ev.SenderID == h.serverID {
		return
	}

	h.mu.RLock()
	listeners := append([]func(Event){}, h.listeners[ev.Code]...)
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}

	h.PublishLocal(ev)
}
