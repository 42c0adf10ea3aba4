package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"media-embedder/internal/mediatypes"
)

// EmbedClass marks the container of an inserted player.
const EmbedClass = "media-embed"

// ErrDetached is returned when a link is no longer part of the document.
var ErrDetached = errors.New("link is no longer attached to the document")

// Document is a mutable HTML page.
type Document struct {
	mu       sync.Mutex
	doc      *goquery.Document
	fragment bool
	links    map[*html.Node]*Link
	nextID   uint64
}

// Parse reads an HTML page or fragment. Fragments are rendered back without
// the html/head/body wrapper the parser adds.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{
		doc:      doc,
		fragment: !isFullDocument(raw),
		links:    make(map[*html.Node]*Link),
	}, nil
}

// isFullDocument reports whether raw opens with a doctype or an html, head
// or body tag, ignoring leading whitespace and comments.
func isFullDocument(raw []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.CommentToken:
			continue
		case html.DoctypeToken:
			return true
		case html.TextToken:
			if len(bytes.TrimSpace(z.Text())) > 0 {
				return false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "html", "head", "body":
				return true
			}
			return false
		default:
			return false
		}
	}
}

// ParseString is Parse for a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render returns the current HTML.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fragment {
		return d.doc.Find("body").Html()
	}
	var buf bytes.Buffer
	for _, n := range d.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("failed to render html: %w", err)
		}
	}
	return buf.String(), nil
}

// AppendHTML parses fragment and appends it to every element matching
// selector, simulating content added after the initial load.
func (d *Document) AppendHTML(selector, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.doc.Find(selector)
	if target.Length() == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}
	target.AppendHtml(fragment)
	return nil
}

// Candidates returns handles for every a[href] under the elements matching
// scope (the whole document when scope is empty) that the allow-list accepts.
// Links already inside an inserted player are skipped. Repeated calls
// return the same *Link for the same node.
func (d *Document) Candidates(scope string, allow *mediatypes.AllowList) []*Link {
	d.mu.Lock()
	defer d.mu.Unlock()

	root := d.doc.Selection
	if scope != "" {
		root = d.doc.Find(scope)
	}

	var out []*Link
	seen := make(map[*html.Node]bool)
	root.Find("a[href]").AddSelection(root.Filter("a[href]")).Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if seen[node] || s.Closest("."+EmbedClass).Length() > 0 {
			return
		}
		seen[node] = true

		href, _ := s.Attr("href")
		candidate, ok := allow.Match(href)
		if !ok {
			return
		}
		out = append(out, d.linkFor(node, candidate))
	})
	return out
}

// linkFor returns the handle for node, creating it on first sight.
// Caller holds d.mu.
func (d *Document) linkFor(node *html.Node, c mediatypes.Candidate) *Link {
	if l, ok := d.links[node]; ok {
		return l
	}
	d.nextID++
	l := &Link{
		doc:       d,
		node:      node,
		id:        "link-" + strconv.FormatUint(d.nextID, 10),
		candidate: c,
	}
	d.links[node] = l
	return l
}

// Count returns the number of elements matching selector.
func (d *Document) Count(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).Length()
}

// Link is a handle on one candidate <a> element.
type Link struct {
	doc       *Document
	node      *html.Node
	id        string
	candidate mediatypes.Candidate
}

// ID identifies the underlying node.
func (l *Link) ID() string {
	return l.id
}

// URL returns the normalised href.
func (l *Link) URL() string {
	return l.candidate.URL
}

// Candidate returns the allow-list match for the link.
func (l *Link) Candidate() mediatypes.Candidate {
	return l.candidate
}

// Replace swaps the <a> element for a player.
func (l *Link) Replace(p Player) error {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()

	parent := l.node.Parent
	if parent == nil {
		return ErrDetached
	}
	if p.MimeType == "" {
		p.MimeType = l.candidate.MimeType
	}
	player := p.node(l.id)
	parent.InsertBefore(player, l.node)
	parent.RemoveChild(l.node)
	delete(l.doc.links, l.node)
	return nil
}
