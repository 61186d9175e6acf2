package event

import "sync"

// Log is the bounded in-memory audit log. It retains the most recent max
// events in insertion order and fans appended events out to subscribed
// watchers. Watcher sends never block; a slow watcher drops events and
// recovers via Last-Event-ID replay.
type Log struct {
	mu       sync.Mutex
	max      int
	events   []Event
	watchers map[chan Event]struct{}
	closed   bool
}

func NewLog(max int) *Log {
	if max <= 0 {
		max = 100
	}
	return &Log{
		max:      max,
		watchers: map[chan Event]struct{}{},
	}
}

// Append stores ev, trims the tail to max, and notifies watchers.
func (l *Log) Append(ev Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Event{}
	}
	if ev.ID == "" {
		ev.ID = NewID()
	}
	l.events = append(l.events, ev)
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
	for ch := range l.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Tail returns up to limit most recent events in insertion order.
// limit <= 0 means the whole retained tail.
func (l *Log) Tail(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// ReplayAfter returns the retained events with IDs greater than lastID.
// ULIDs sort lexicographically, so string comparison is insertion order.
// An empty or unparseable lastID replays the whole tail.
func (l *Log) ReplayAfter(lastID string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lastID == "" {
		out := make([]Event, len(l.events))
		copy(out, l.events)
		return out
	}
	out := make([]Event, 0, len(l.events))
	for _, ev := range l.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (l *Log) Subscribe() chan Event {
	ch := make(chan Event, 32)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch
	}
	l.watchers[ch] = struct{}{}
	return ch
}

func (l *Log) Unsubscribe(ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.watchers[ch]; ok {
		delete(l.watchers, ch)
		close(ch)
	}
}

func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for ch := range l.watchers {
		close(ch)
		delete(l.watchers, ch)
	}
}
