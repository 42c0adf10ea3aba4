// Package mediatypes decides which hyperlinks are embeddable media.
//
// A link is a candidate when its host matches one of the allow-list globs
// and its path ends in a supported video extension:
//
//	allow := mediatypes.NewAllowList([]string{"files.catbox.moe", "*.lain.la"})
//	if c, ok := allow.Match(href); ok {
//	    // c.URL, c.MimeType
//	}
//
// The package has no dependencies beyond the standard library so that the
// page, watcher and handler layers can share it without import cycles.
package mediatypes
