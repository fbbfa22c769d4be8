package identity

import (
	"slices"
	"sync"
)

// listenerSet fans auth-state events out to subscribers.
type listenerSet struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]Listener
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

func (l *listenerSet) add(fn Listener) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]Listener)
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	return &subscription{remove: func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}}
}

// emit calls every listener in subscription order. It must be called
// without holding the provider's own lock.
func (l *listenerSet) emit(event Event, session *Session) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	fns := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(event, session.Clone())
	}
}
