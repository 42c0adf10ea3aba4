package embedder

import (
	"context"
	"sync"
	"time"

	"media-embedder/internal/mediatypes"
	"media-embedder/internal/page"
	"media-embedder/internal/watcher"
)

// Summary counts the outcomes of one ProcessDocument call.
type Summary struct {
	Candidates int `json:"candidates"`
	Embedded   int `json:"embedded"`
	CacheHits  int `json:"cacheHits"`
	Failed     int `json:"failed"`
}

// tally wraps a Reporter and counts terminal outcomes.
type tally struct {
	Reporter

	mu  sync.Mutex
	sum Summary
}

func (t *tally) Completed(res *Result, elapsed time.Duration) {
	t.mu.Lock()
	t.sum.Embedded++
	if res.CacheHit {
		t.sum.CacheHits++
	}
	t.mu.Unlock()
	t.Reporter.Completed(res, elapsed)
}

func (t *tally) Failed(res *Result, err error, elapsed time.Duration) {
	t.mu.Lock()
	t.sum.Failed++
	t.mu.Unlock()
	t.Reporter.Failed(res, err, elapsed)
}

// ProcessDocument embeds every allowed link in doc and returns once all of
// them have finished. Each call uses its own Embedder, so link identity is
// scoped to doc.
func ProcessDocument(ctx context.Context, opts Options, doc *page.Document, allow *mediatypes.AllowList) (Summary, error) {
	if opts.Reporter == nil {
		opts.Reporter = NewReporter()
	}
	t := &tally{Reporter: opts.Reporter}
	opts.Reporter = t

	e, err := New(opts)
	if err != nil {
		return Summary{}, err
	}

	w := watcher.New(doc, allow)
	events := w.Subscribe()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, events) }()

	n := w.Observe("")
	w.Close()
	err = <-done
	// Run stops reading when ctx ends; release anything still queued.
	w.Unsubscribe(events)

	t.mu.Lock()
	defer t.mu.Unlock()
	sum := t.sum
	sum.Candidates = n
	return sum, err
}
