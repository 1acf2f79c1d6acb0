// Package sse streams note change events to connected clients over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	TypeNoteCreated   = "note.created"
	TypeNoteUpdated   = "note.updated"
	TypeNoteDeleted   = "note.deleted"
	TypeLinksResolved = "links.resolved"
	TypeGraphUpdated  = "graph.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteRef is the payload of note.* events.
type NoteRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

type linksResolvedData struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set and the graph throttle
// timestamp; public methods talk to it over channels.
type Broker struct {
	graphMin time.Duration
	logger   *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. graph.updated is emitted at most once
// per graphThrottle, following a change.
func NewBroker(graphThrottle time.Duration, logger *slog.Logger) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broker{
		graphMin:      graphThrottle,
		logger:        logger,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			b.logger.Warn("sse: encode event failed",
				slog.String("type", event.Type),
				slog.String("error", err.Error()))
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case event := <-b.changeCh:
			broadcast(event)

			now := time.Now()
			if now.Sub(lastGraph) >= b.graphMin {
				lastGraph = now
				broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.send(b.publishCh, event)
}

// PublishNoteEvent broadcasts note.<kind> for a note followed by a throttled
// graph.updated. Unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, id, slug string) {
	var typ string
	switch kind {
	case "created":
		typ = TypeNoteCreated
	case "updated":
		typ = TypeNoteUpdated
	case "deleted":
		typ = TypeNoteDeleted
	default:
		return
	}
	b.send(b.changeCh, Event{Type: typ, Data: NoteRef{ID: id, Slug: slug}})
}

// PublishLinksResolved broadcasts links.resolved with the pass summary,
// followed by a throttled graph.updated.
func (b *Broker) PublishLinksResolved(noteID string, summary any) {
	b.send(b.changeCh, Event{Type: TypeLinksResolved, Data: linksResolvedData{ID: noteID, Result: summary}})
}

func (b *Broker) send(ch chan Event, event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case ch <- event:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
