package authsession

import "sync"

// Emitter is a change notification registry that IdentityProvider
// implementations embed to satisfy OnSessionChange.
type Emitter struct {
	mu       sync.Mutex
	seq      uint64
	handlers []emitterEntry
}

type emitterEntry struct {
	id uint64
	fn SessionChangeFunc
}

type emitterSubscription struct {
	once    sync.Once
	emitter *Emitter
	id      uint64
}

func (s *emitterSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.emitter.remove(s.id)
	})
}

// OnSessionChange registers fn and returns a handle to release it.
func (e *Emitter) OnSessionChange(fn SessionChangeFunc) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	id := e.seq
	if fn != nil {
		e.handlers = append(e.handlers, emitterEntry{id: id, fn: fn})
	}

	return &emitterSubscription{emitter: e, id: id}
}

// Emit delivers the change to every registered handler in registration order.
// Handlers run on the caller's goroutine, outside the registry lock.
func (e *Emitter) Emit(event ChangeEvent, session *Session) {
	e.mu.Lock()
	handlers := make([]SessionChangeFunc, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h.fn)
	}
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(event, session)
	}
}

// Len returns the number of live subscriptions
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

func (e *Emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return
		}
	}
}
