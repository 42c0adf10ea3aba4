package embedder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-embedder/internal/database"
	"media-embedder/internal/ebml"
	"media-embedder/internal/fetcher"
	"media-embedder/internal/logging"
	"media-embedder/internal/media"
	"media-embedder/internal/page"
	"media-embedder/internal/watcher"
)

// ErrAlreadyStarted is returned when a link instance has already been
// embedded or is being embedded.
var ErrAlreadyStarted = errors.New("embed already started for this link")

// State is a step of the embedding state machine.
type State string

// Embedding states.
const (
	StateIdle         State = "idle"
	StateCacheCheck   State = "cache_check"
	StateCacheHit     State = "cache_hit"
	StateCacheMiss    State = "cache_miss"
	StateFetching     State = "fetching"
	StateDecoding     State = "decoding"
	StateThumbnailing State = "thumbnailing"
	StateApply        State = "apply"
	StateCachePersist State = "cache_persist"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Link is a page element that can be replaced by a player.
type Link interface {
	ID() string
	URL() string
	Replace(page.Player) error
}

// Fetcher downloads a bounded prefix of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, budget int64) (*fetcher.Chunk, error)
}

// Thumbnailer encodes a frame as a poster image.
type Thumbnailer interface {
	Generate(frame image.Image) (*media.Thumbnail, error)
}

// Policy tunes retry behaviour.
type Policy struct {
	// EscalateOnNetworkError retries with the large budget when the small
	// fetch fails before any response arrives.
	EscalateOnNetworkError bool
}

// DefaultPolicy escalates on network errors.
func DefaultPolicy() Policy {
	return Policy{EscalateOnNetworkError: true}
}

// Options wires an Embedder's collaborators.
type Options struct {
	Store      database.Store
	Namespaces database.Namespaces
	Fetcher    Fetcher
	Budget     fetcher.Budget
	Extractor  media.FrameExtractor
	Thumbnails Thumbnailer
	Policy     Policy
	Reporter   Reporter
}

// Result describes a finished embed.
type Result struct {
	AttemptID string
	URL       string
	State     State
	Thumbnail *media.Thumbnail
	Title     string
	Volume    float64
	CacheHit  bool
	Attempts  int
	Budgets   []int64
}

// Embedder runs the pipeline for candidate links.
type Embedder struct {
	store      database.Store
	ns         database.Namespaces
	fetcher    Fetcher
	budget     fetcher.Budget
	extractor  media.FrameExtractor
	thumbnails Thumbnailer
	policy     Policy
	reporter   Reporter

	mu      sync.Mutex
	started map[string]struct{}
}

// New creates an Embedder. Store, Fetcher, Extractor and Thumbnails are
// required.
func New(opts Options) (*Embedder, error) {
	if opts.Store == nil || opts.Fetcher == nil || opts.Extractor == nil || opts.Thumbnails == nil {
		return nil, errors.New("embedder: store, fetcher, extractor and thumbnails are required")
	}
	if opts.Budget == (fetcher.Budget{}) {
		opts.Budget = fetcher.DefaultBudget()
	}
	if err := opts.Budget.Validate(); err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if opts.Namespaces == (database.Namespaces{}) {
		opts.Namespaces = database.NewNamespaces(1)
	}
	if opts.Reporter == nil {
		opts.Reporter = NewReporter()
	}
	return &Embedder{
		store:      opts.Store,
		ns:         opts.Namespaces,
		fetcher:    opts.Fetcher,
		budget:     opts.Budget,
		extractor:  opts.Extractor,
		thumbnails: opts.Thumbnails,
		policy:     opts.Policy,
		reporter:   opts.Reporter,
		started:    make(map[string]struct{}),
	}, nil
}

// claim records link as started. It reports false when it already was.
func (e *Embedder) claim(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.started[id]; ok {
		return false
	}
	e.started[id] = struct{}{}
	return true
}

// Embed runs the state machine for one link. On failure the link is left
// untouched and the returned error describes the cause; the Result is
// still returned with State set to StateFailed.
func (e *Embedder) Embed(ctx context.Context, link Link) (*Result, error) {
	if !e.claim(link.ID()) {
		return nil, ErrAlreadyStarted
	}

	start := time.Now()
	run := &attempt{
		Embedder: e,
		link:     link,
		res: &Result{
			AttemptID: uuid.NewString(),
			URL:       link.URL(),
			State:     StateIdle,
		},
	}
	e.reporter.Started(run.res)

	err := run.execute(ctx)
	if err != nil {
		run.res.State = StateFailed
		e.reporter.Failed(run.res, err, time.Since(start))
		return run.res, err
	}
	run.res.State = StateDone
	e.reporter.Completed(run.res, time.Since(start))
	return run.res, nil
}

// attempt carries the state of a single Embed call.
type attempt struct {
	*Embedder
	link Link
	res  *Result
}

func (a *attempt) transition(s State) {
	logging.Debug("embed %s [%s]: %s -> %s", a.res.AttemptID, a.res.URL, a.res.State, s)
	a.res.State = s
}

func (a *attempt) execute(ctx context.Context) error {
	url := a.res.URL

	volume, err := database.GetVolume(ctx, a.store, a.ns)
	if err != nil {
		a.reporter.StorageFailed(a.res, a.ns.Volume, "get", err)
	}
	a.res.Volume = volume

	a.transition(StateCacheCheck)
	if thumb, ok := a.lookupThumbnail(ctx); ok {
		a.transition(StateCacheHit)
		a.res.CacheHit = true
		a.res.Thumbnail = thumb
		a.res.Title = a.lookupTitle(ctx)

		a.transition(StateApply)
		if err := a.link.Replace(a.player()); err != nil {
			return &ApplyError{URL: url, Err: err}
		}
		return nil
	}
	a.transition(StateCacheMiss)

	frame, err := a.fetchAndDecode(ctx)
	if err != nil {
		return err
	}

	a.transition(StateThumbnailing)
	thumb, err := a.thumbnails.Generate(frame)
	if err != nil {
		return fmt.Errorf("thumbnail %s: %w", url, err)
	}
	a.res.Thumbnail = thumb

	a.transition(StateApply)
	applyErr := a.link.Replace(a.player())

	// Derived artifacts are valid even if the link went away.
	a.transition(StateCachePersist)
	a.persist(ctx)

	if applyErr != nil {
		return &ApplyError{URL: url, Err: applyErr}
	}
	return nil
}

// fetchAndDecode runs the small fetch and, when allowed, one large fetch.
func (a *attempt) fetchAndDecode(ctx context.Context) (image.Image, error) {
	budgets := []int64{a.budget.Small, a.budget.Large}

	var lastErr error
	for i, budget := range budgets {
		if i > 0 {
			a.reporter.Escalated(a.res, budgets[i-1], budget, lastErr)
		}

		a.transition(StateFetching)
		a.res.Budgets = append(a.res.Budgets, budget)
		a.res.Attempts++

		chunk, err := a.fetcher.Fetch(ctx, a.res.URL, budget)
		if err != nil {
			var netErr *fetcher.NetworkError
			if i == 0 && errors.As(err, &netErr) && a.policy.EscalateOnNetworkError && ctx.Err() == nil {
				lastErr = err
				continue
			}
			return nil, err
		}

		a.transition(StateDecoding)
		titles := make(chan ebml.Info, 1)
		go func(data []byte) {
			titles <- ebml.Scan(data)
		}(chunk.Data)

		frame, err := a.extractor.ExtractFrame(ctx, chunk.Data)

		info := <-titles
		a.reporter.TitleScanned(a.res, info)
		if info.Title != "" {
			a.res.Title = info.Title
		}

		if err == nil {
			return frame, nil
		}

		var decodeErr *media.DecodeError
		if i == 0 && errors.As(err, &decodeErr) && ctx.Err() == nil {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// lookupThumbnail returns a usable cached thumbnail. Storage failures and
// unreadable entries count as a miss.
func (a *attempt) lookupThumbnail(ctx context.Context) (*media.Thumbnail, bool) {
	data, ok, err := a.store.Get(ctx, a.ns.Thumbnail, a.res.URL)
	if err != nil {
		a.reporter.StorageFailed(a.res, a.ns.Thumbnail, "get", err)
		a.reporter.CacheLookup(a.ns.Thumbnail, false)
		return nil, false
	}
	if !ok {
		a.reporter.CacheLookup(a.ns.Thumbnail, false)
		return nil, false
	}

	cfg, mime, err := media.DecodeThumbnailConfig(data)
	if err != nil {
		logging.Warn("embed %s: ignoring unreadable cached thumbnail for %s: %v", a.res.AttemptID, a.res.URL, err)
		a.reporter.CacheLookup(a.ns.Thumbnail, false)
		return nil, false
	}
	a.reporter.CacheLookup(a.ns.Thumbnail, true)
	return &media.Thumbnail{
		Data:     data,
		MIMEType: mime,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, true
}

func (a *attempt) lookupTitle(ctx context.Context) string {
	data, ok, err := a.store.Get(ctx, a.ns.Title, a.res.URL)
	if err != nil {
		a.reporter.StorageFailed(a.res, a.ns.Title, "get", err)
		return ""
	}
	a.reporter.CacheLookup(a.ns.Title, ok)
	return string(data)
}

func (a *attempt) persist(ctx context.Context) {
	if err := a.store.Set(ctx, a.ns.Thumbnail, a.res.URL, a.res.Thumbnail.Data); err != nil {
		a.reporter.StorageFailed(a.res, a.ns.Thumbnail, "set", err)
	}
	if a.res.Title == "" {
		return
	}
	if err := a.store.Set(ctx, a.ns.Title, a.res.URL, []byte(a.res.Title)); err != nil {
		a.reporter.StorageFailed(a.res, a.ns.Title, "set", err)
	}
}

func (a *attempt) player() page.Player {
	p := page.Player{
		Src:    a.res.URL,
		Title:  a.res.Title,
		Volume: a.res.Volume,
	}
	if t := a.res.Thumbnail; t != nil {
		p.Poster = t.DataURI()
		p.PosterWidth = t.Width
		p.PosterHeight = t.Height
	}
	return p
}

// Run embeds every link received on events, one goroutine per event. It
// returns nil once events is closed and all started embeds have finished,
// or ctx.Err() after waiting for in-flight embeds when ctx is canceled.
// Events left unread after cancellation belong to the caller, which should
// unsubscribe from its watcher.
//
// The Embedder remembers every link it has started for its whole lifetime,
// so scope one Embedder to one document rather than to a long-lived stream.
func (e *Embedder) Run(ctx context.Context, events <-chan watcher.Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Link == nil {
				continue
			}
			wg.Add(1)
			go func(link Link) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						logging.Error("embed %s: panic: %v", link.URL(), r)
					}
				}()
				// Failures are reported by Embed.
				_, _ = e.Embed(ctx, link)
			}(ev.Link)
		}
	}
}
