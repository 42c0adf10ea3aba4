package page

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"media-embedder/internal/mediatypes"
)

const forumPost = `<div class="post" id="p1">
<p>look at this <a href="https://files.catbox.moe/clip.webm">clip.webm</a></p>
<p>and <a href="https://example.com/other.webm">this one</a> is not allowed</p>
<p><a href="https://files.catbox.moe/image.png">an image</a></p>
<p><a href="https://files.catbox.moe/two.MP4">two</a></p>
</div>`

func testAllow() *mediatypes.AllowList {
	return mediatypes.NewAllowList([]string{"files.catbox.moe"})
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(forumPost)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	links := doc.Candidates("", testAllow())
	if len(links) != 2 {
		t.Fatalf("Candidates() returned %d links, want 2", len(links))
	}
	if links[0].URL() != "https://files.catbox.moe/clip.webm" {
		t.Errorf("first URL = %q", links[0].URL())
	}
	if links[1].Candidate().MimeType != "video/mp4" {
		t.Errorf("second MimeType = %q", links[1].Candidate().MimeType)
	}
	if links[0].ID() == links[1].ID() {
		t.Error("distinct nodes share an ID")
	}

	again := doc.Candidates("#p1", testAllow())
	if len(again) != 2 || again[0] != links[0] || again[1] != links[1] {
		t.Error("rescanning should return the same handles for the same nodes")
	}
}

func TestCandidatesScope(t *testing.T) {
	t.Parallel()

	doc, _ := ParseString(`<div id="a"><a href="https://files.catbox.moe/a.webm">a</a></div>
<div id="b"><a href="https://files.catbox.moe/b.webm">b</a></div>`)

	links := doc.Candidates("#b", testAllow())
	if len(links) != 1 || !strings.HasSuffix(links[0].URL(), "b.webm") {
		t.Errorf("scoped Candidates() = %v", links)
	}
	if got := doc.Candidates("#missing", testAllow()); len(got) != 0 {
		t.Errorf("Candidates() on missing scope = %d links", len(got))
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()

	doc, _ := ParseString(forumPost)
	link := doc.Candidates("", testAllow())[0]

	err := link.Replace(Player{
		Src:          link.URL(),
		Poster:       "data:image/jpeg;base64,AAAA",
		PosterWidth:  200,
		PosterHeight: 112,
		Title:        "My Clip",
		Volume:       0.5,
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		`<div class="media-embed" data-state="minimized" data-embed-id="` + link.ID() + `">`,
		`preload="none"`,
		`data-src="https://files.catbox.moe/clip.webm"`,
		`data-type="video/webm"`,
		`poster="data:image/jpeg;base64,AAAA"`,
		`aria-label="Video: My Clip"`,
		`title="My Clip"`,
		`data-volume="0.5"`,
		`width="200" height="112"`,
		`aria-expanded="false"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, `<a href="https://files.catbox.moe/clip.webm"`) {
		t.Error("original link still present after Replace")
	}
	if strings.Contains(out, "<html>") || strings.Contains(out, "<body>") {
		t.Error("fragment rendered with document wrapper")
	}
	if !strings.Contains(out, `<a href="https://example.com/other.webm">`) {
		t.Error("sibling link should be untouched")
	}

	if err := link.Replace(Player{Src: link.URL()}); !errors.Is(err, ErrDetached) {
		t.Errorf("second Replace() error = %v, want ErrDetached", err)
	}
	if n := doc.Count("." + EmbedClass); n != 1 {
		t.Errorf("player count = %d, want 1", n)
	}
}

func TestReplacedPlayerIsNotACandidate(t *testing.T) {
	t.Parallel()

	doc, _ := ParseString(`<p><a href="https://files.catbox.moe/a.webm">a</a></p>`)
	link := doc.Candidates("", testAllow())[0]
	if err := link.Replace(Player{Src: link.URL()}); err != nil {
		t.Fatal(err)
	}
	if got := doc.Candidates("", testAllow()); len(got) != 0 {
		t.Errorf("Candidates() after replace = %d, want 0", len(got))
	}
}

func TestRenderFullDocument(t *testing.T) {
	t.Parallel()

	doc, _ := ParseString(`<!DOCTYPE html><html><head><title>t</title></head><body><p>x</p></body></html>`)
	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "<!DOCTYPE html>") || !strings.Contains(out, "<body><p>x</p></body>") {
		t.Errorf("Render() = %q", out)
	}
}

func TestIsFullDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"doctype", "<!DOCTYPE html><p>x</p>", true},
		{"html tag", "  <HTML><body></body></HTML>", true},
		{"body after comment", "<!-- saved -->\n<body><p>x</p></body>", true},
		{"head first", "<head><title>t</title></head>", true},
		{"plain fragment", `<div class="post">hi</div>`, false},
		{"body quoted in text", `<p>put it in the <body> element</p>`, false},
		{"body in attribute", `<a title="<body>" href="https://files.catbox.moe/a.webm">a</a>`, false},
		{"leading text", `see <html> docs`, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFullDocument([]byte(tt.in)); got != tt.want {
				t.Errorf("isFullDocument(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderFragmentMentioningBody(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(`<p>wrap it in <code>&lt;body</code> or <span title="<body">here</span></p>`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<html>") || strings.Contains(out, "<head>") || !strings.HasPrefix(out, "<p>") {
		t.Errorf("fragment rendered as a document: %q", out)
	}
}

func TestAppendHTML(t *testing.T) {
	t.Parallel()

	doc, _ := ParseString(`<div id="thread"></div>`)
	if err := doc.AppendHTML("#thread", `<a href="https://files.catbox.moe/new.webm">new</a>`); err != nil {
		t.Fatalf("AppendHTML() error = %v", err)
	}
	if got := doc.Candidates("", testAllow()); len(got) != 1 {
		t.Errorf("Candidates() after append = %d, want 1", len(got))
	}
	if err := doc.AppendHTML("#nope", "<p></p>"); err == nil {
		t.Error("AppendHTML() on missing selector should fail")
	}
}

func TestConcurrentReplace(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString(`<p><a href="https://files.catbox.moe/c`)
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString(`.webm">c</a></p>`)
	}
	doc, _ := ParseString(b.String())
	links := doc.Candidates("", testAllow())

	var wg sync.WaitGroup
	for _, l := range links {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Replace(Player{Src: l.URL(), Volume: 1}); err != nil {
				t.Errorf("Replace() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := doc.Count("." + EmbedClass); n != 50 {
		t.Errorf("player count = %d, want 50", n)
	}
}

func TestPlayerLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p    Player
		want string
	}{
		{Player{Src: "https://h/a/clip.webm", Title: "Named"}, "Named"},
		{Player{Src: "https://h/a/clip.webm", Title: "  "}, "clip.webm"},
		{Player{Src: "https://h/a/clip.webm?x=1"}, "clip.webm"},
	}
	for _, tt := range tests {
		if got := tt.p.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}
