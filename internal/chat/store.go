package chat

import "sync"

// Store is the append-only, arrival-ordered sequence of messages shown by the view.
// Entries are never removed, edited, reordered, or deduplicated.
type Store struct {
	mu        sync.RWMutex
	messages  []Message
	nextSubID uint64
	subs      []subscriber
}

type subscriber struct {
	id uint64
	fn func(Message)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds msg to the end and notifies subscribers in registration order.
// msg must have non-empty Author and Body; build it with NewMessage.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(msg)
	}
}

// All returns a copy of the messages in arrival order.
func (s *Store) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Subscribe registers fn to run after every Append. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Message)) func() {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
