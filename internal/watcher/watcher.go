// Package watcher discovers embeddable links as content is added to a page.
//
// Observe scans a subtree and publishes one Event per newly seen candidate
// node to every subscriber. Node identity, not URL, is the unit of
// deduplication: two links to the same file are both reported, a node is
// never reported twice. Subscriber channels are backed by unbounded queues
// so Observe never blocks on a slow consumer. A consumer that stops reading
// early must call Unsubscribe to release its queue.
package watcher

import (
	"sync"

	"media-embedder/internal/logging"
	"media-embedder/internal/mediatypes"
	"media-embedder/internal/page"
)

// Event announces a candidate link.
type Event struct {
	Link *page.Link
}

// Watcher publishes candidate links found in a document.
type Watcher struct {
	doc   *page.Document
	allow *mediatypes.AllowList

	mu     sync.Mutex
	seen   map[string]struct{}
	subs   []*subscription
	closed bool
}

// New creates a watcher over doc.
func New(doc *page.Document, allow *mediatypes.AllowList) *Watcher {
	return &Watcher{
		doc:   doc,
		allow: allow,
		seen:  make(map[string]struct{}),
	}
}

// Subscribe returns a channel that receives every event published after the
// call. The channel is closed after Close once queued events are drained, or
// immediately by Unsubscribe.
func (w *Watcher) Subscribe() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := newSubscription()
	if w.closed {
		s.close()
	} else {
		w.subs = append(w.subs, s)
	}
	return s.out
}

// Observe scans the elements matching scope (the whole document when empty)
// and publishes unseen candidates. It returns the number published.
func (w *Watcher) Observe(scope string) int {
	links := w.doc.Candidates(scope, w.allow)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0
	}

	published := 0
	for _, l := range links {
		if _, ok := w.seen[l.ID()]; ok {
			continue
		}
		w.seen[l.ID()] = struct{}{}
		for _, s := range w.subs {
			s.push(Event{Link: l})
		}
		published++
	}
	if published > 0 {
		logging.Debug("Watcher: %d new candidate link(s) in %q", published, scope)
	}
	return published
}

// Close ends every subscription. Events already queued are still delivered
// before each channel closes. Further Observe calls publish nothing.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	for _, s := range w.subs {
		s.close()
	}
}

// Unsubscribe stops delivery on ch, a channel returned by Subscribe. Queued
// events are discarded and ch is closed. A consumer that stops reading
// before ch is drained must call it.
func (w *Watcher) Unsubscribe(ch <-chan Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, s := range w.subs {
		if (<-chan Event)(s.out) == ch {
			s.stop()
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			return
		}
	}
}

// subscription forwards an unbounded queue into an unbuffered channel.
type subscription struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	done    bool
	stopped bool
	halt    chan struct{}
	out     chan Event
}

func newSubscription() *subscription {
	s := &subscription{
		out:  make(chan Event),
		halt: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscription) push(ev Event) {
	s.mu.Lock()
	if !s.stopped {
		s.pending = append(s.pending, ev)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscription) stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		s.pending = nil
		close(s.halt)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.done && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped || len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.pending[0]
		s.pending[0] = Event{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.halt:
			return
		}
	}
}
