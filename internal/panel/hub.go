package panel

import "sync"

// Hub fans view snapshots out to websocket subscribers. Each subscriber gets
// its own small queue so a slow browser doesn't block others.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan []byte
	quit chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber. The returned channel is never closed;
// select on done, which closes after remove or Close.
func (h *Hub) Subscribe() (msgs <-chan []byte, done <-chan struct{}, remove func()) {
	s := &subscriber{ch: make(chan []byte, 8), quit: make(chan struct{})}
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[*subscriber]struct{})
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s.ch, s.quit, func() {
		h.mu.Lock()
		if _, ok := h.subs[s]; ok {
			delete(h.subs, s)
			close(s.quit)
		}
		h.mu.Unlock()
	}
}

// Broadcast queues msg for every subscriber, dropping it for those whose
// queue is full. It returns the number of subscribers that got it.
func (h *Hub) Broadcast(msg []byte) int {
	n := 0
	h.mu.RLock()
	for s := range h.subs {
		select {
		case s.ch <- msg:
			n++
		default:
		}
	}
	h.mu.RUnlock()
	return n
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	for s := range h.subs {
		close(s.quit)
		delete(h.subs, s)
	}
	h.mu.Unlock()
}
