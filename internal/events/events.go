// Package events carries progress notifications from long-running backend
// work to whoever is listening (the HTTP event stream, the CLI).
package events

import (
	"sync"
	"time"
)

const (
	// ModelDownloading is emitted with payload true when the model download starts.
	ModelDownloading = "bg-model-downloading"
	// ModelDownloaded is emitted with payload true after the model file is in place.
	ModelDownloaded = "bg-model-downloaded"
	// ExportProgress is emitted with a Progress payload after each zip entry.
	ExportProgress = "zip-progress"
)

// Observer receives notifications. Emit must not block.
type Observer interface {
	Emit(name string, payload any)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(name string, payload any)

// Emit calls f.
func (f ObserverFunc) Emit(name string, payload any) { f(name, payload) }

// Nop discards every notification.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(string, any) {}

// Progress is the payload of counting events.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Event is a notification delivered to hub subscribers.
type Event struct {
	Sequence uint64    `json:"seq"`
	Name     string    `json:"name"`
	Payload  any       `json:"payload"`
	Time     time.Time `json:"ts"`
}

// Hub fans notifications out to subscribers. Slow subscribers lose events
// rather than stalling the emitter.
type Hub struct {
	mu      sync.Mutex
	nextSeq uint64
	nextID  int
	subs    map[int]chan Event
	buffer  int
	dropped uint64
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

// Emit publishes an event to every subscriber without blocking.
func (h *Hub) Emit(name string, payload any) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt := Event{Sequence: h.nextSeq, Name: name, Payload: payload, Time: time.Now().UTC()}
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.dropped++
		}
	}
}

// Subscribe registers a listener. The returned cancel function closes the
// channel and must be called once the caller stops reading.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Multi forwards to several observers.
type Multi []Observer

// Emit forwards to each non-nil observer.
func (m Multi) Emit(name string, payload any) {
	for _, o := range m {
		if o != nil {
			o.Emit(name, payload)
		}
	}
}
