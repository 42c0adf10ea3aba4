package page

import (
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Player states.
const (
	StateMinimized = "minimized"
	StateExpanded  = "expanded"
)

// Player describes the inline video element that replaces a link.
type Player struct {
	Src          string
	MimeType     string
	Poster       string
	PosterWidth  int
	PosterHeight int
	Title        string
	Volume       float64
}

// Label returns the accessible name: the title, else the file name.
func (p Player) Label() string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	name := path.Base(p.Src)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return name
}

// node builds the player subtree. The video is not loaded until expanded.
func (p Player) node(id string) *html.Node {
	container := element(atom.Div,
		attr("class", EmbedClass),
		attr("data-state", StateMinimized),
		attr("data-embed-id", id),
	)

	video := element(atom.Video,
		attr("preload", "none"),
		attr("controls", ""),
		attr("loop", ""),
		attr("playsinline", ""),
		attr("data-src", p.Src),
		attr("data-type", p.MimeType),
		attr("aria-label", "Video: "+p.Label()),
		attr("data-volume", strconv.FormatFloat(p.Volume, 'f', -1, 64)),
	)
	if p.Poster != "" {
		video.Attr = append(video.Attr, attr("poster", p.Poster))
	}
	if p.Title != "" {
		video.Attr = append(video.Attr, attr("title", p.Title))
	}
	if p.PosterWidth > 0 && p.PosterHeight > 0 {
		video.Attr = append(video.Attr,
			attr("width", strconv.Itoa(p.PosterWidth)),
			attr("height", strconv.Itoa(p.PosterHeight)),
		)
	}

	toggle := element(atom.Button,
		attr("type", "button"),
		attr("class", EmbedClass+"-toggle"),
		attr("aria-expanded", "false"),
		attr("aria-label", "Expand "+p.Label()),
	)
	toggle.AppendChild(&html.Node{Type: html.TextNode, Data: "Expand"})

	container.AppendChild(video)
	container.AppendChild(toggle)
	return container
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}
