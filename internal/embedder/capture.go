package embedder

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"media-embedder/internal/page"
)

// CaptureLink is a Link that is not part of any page. Replace records the
// player instead of mutating a document.
type CaptureLink struct {
	id  string
	url string

	mu     sync.Mutex
	player *page.Player
}

// NewCaptureLink returns a standalone link for url with a fresh ID.
func NewCaptureLink(url string) *CaptureLink {
	return &CaptureLink{id: uuid.NewString(), url: url}
}

func (c *CaptureLink) ID() string  { return c.id }
func (c *CaptureLink) URL() string { return c.url }

// Replace records p. A second call fails.
func (c *CaptureLink) Replace(p page.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player != nil {
		return errors.New("link already replaced")
	}
	c.player = &p
	return nil
}

// Player returns the recorded player, or nil.
func (c *CaptureLink) Player() *page.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}
