package mediatypes

import (
	"net/url"
	"path"
	"strings"
)

// VideoExtensions maps embeddable extensions to their MIME types.
var VideoExtensions = map[string]string{
	".webm": "video/webm",
	".mp4":  "video/mp4",
}

// DefaultHosts are the file hosts allowed when none are configured.
var DefaultHosts = []string{
	"files.catbox.moe",
	"litter.catbox.moe",
	"pomf2.lain.la",
}

// GetMimeType returns the MIME type for a lowercase extension with its
// leading dot, or "application/octet-stream".
func GetMimeType(ext string) string {
	if mime, ok := VideoExtensions[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsVideoExtension reports whether ext (any case) is embeddable.
func IsVideoExtension(ext string) bool {
	_, ok := VideoExtensions[strings.ToLower(ext)]
	return ok
}

// Candidate is a link that qualifies for embedding.
type Candidate struct {
	URL      string
	Host     string
	Ext      string
	MimeType string
}

// AllowList holds host glob patterns in path.Match syntax.
type AllowList struct {
	patterns []string
}

// NewAllowList builds an allow-list. Empty and malformed patterns are
// dropped; an empty result falls back to DefaultHosts.
func NewAllowList(patterns []string) *AllowList {
	var valid []string
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		valid = append(valid, DefaultHosts...)
	}
	return &AllowList{patterns: valid}
}

// Patterns returns a copy of the active patterns.
func (a *AllowList) Patterns() []string {
	out := make([]string, len(a.patterns))
	copy(out, a.patterns)
	return out
}

// AllowsHost reports whether host matches any pattern.
func (a *AllowList) AllowsHost(host string) bool {
	host = strings.ToLower(host)
	for _, p := range a.patterns {
		if ok, _ := path.Match(p, host); ok {
			return true
		}
	}
	return false
}

// Match parses raw and returns it as a Candidate when it is an http(s) URL
// on an allowed host whose path ends in a video extension.
func (a *AllowList) Match(raw string) (Candidate, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Candidate{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Candidate{}, false
	}
	host := u.Hostname()
	if host == "" || !a.AllowsHost(host) {
		return Candidate{}, false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	mime, ok := VideoExtensions[ext]
	if !ok {
		return Candidate{}, false
	}
	return Candidate{
		URL:      u.String(),
		Host:     strings.ToLower(host),
		Ext:      ext,
		MimeType: mime,
	}, true
}
