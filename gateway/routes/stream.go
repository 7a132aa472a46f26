package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"pacochain/core/events"
	"pacochain/observability"
)

const (
	streamHistoryLimit = 2048
	streamBufferSize   = 32
	wsWriteTimeout     = 10 * time.Second
)

// StreamEvent is the websocket frame for one committed ledger event.
type StreamEvent struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func cloneStreamEvent(evt StreamEvent) StreamEvent {
	cloned := evt
	cloned.Attributes = make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		cloned.Attributes[k] = v
	}
	return cloned
}

// Hub fans committed events out to websocket subscribers and keeps a bounded
// history so clients can resume from a cursor. Slow subscribers drop events
// rather than stall the ledger.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan StreamEvent
	history []StreamEvent
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan StreamEvent)}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	payload, ok := events.Payload(evt)
	if !ok {
		return
	}
	h.mu.Lock()
	h.seq++
	update := StreamEvent{
		Sequence: h.seq,
		Cursor:   strconv.FormatUint(h.seq, 10),
		Type:     payload.Type,
	}
	update.Attributes = payload.Clone().Attributes
	h.history = append(h.history, cloneStreamEvent(update))
	if len(h.history) > streamHistoryLimit {
		excess := len(h.history) - streamHistoryLimit
		trimmed := make([]StreamEvent, streamHistoryLimit)
		copy(trimmed, h.history[excess:])
		h.history = trimmed
	}
	// Sends stay under the lock so cancel cannot close a channel mid-send.
	for _, ch := range h.subs {
		select {
		case ch <- cloneStreamEvent(update):
		default:
			observability.Events().RecordDropped("websocket")
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a subscriber receiving events after cursor. The
// returned cancel func is also invoked when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, cursor string) (<-chan StreamEvent, func(), []StreamEvent) {
	updates := make(chan StreamEvent, streamBufferSize)
	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	backlog := make([]StreamEvent, 0, len(h.history))
	for _, entry := range h.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneStreamEvent(entry))
		}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

func (h *Hub) handleStream(w http.ResponseWriter, r *http.Request) {
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	typeFilter := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := h.stream(ctx, conn, cursor, typeFilter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (h *Hub) stream(ctx context.Context, conn *websocket.Conn, cursor, typeFilter string) error {
	updates, cancel, backlog := h.Subscribe(ctx, cursor)
	defer cancel()

	for _, update := range backlog {
		if !matchesType(update.Type, typeFilter) {
			continue
		}
		if err := writeStreamEvent(ctx, conn, update); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if !matchesType(update.Type, typeFilter) {
				continue
			}
			if err := writeStreamEvent(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func matchesType(eventType, filter string) bool {
	return filter == "" || strings.HasPrefix(eventType, filter)
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, update StreamEvent) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
