// Package page holds an HTML document that media players are spliced into.
//
// [Document] wraps a goquery document. Every read and mutation goes through
// the document's mutex, so embeds running on separate goroutines can replace
// their links safely. [Link] is a handle on one <a> element; its ID is stable
// for the lifetime of the node and is used to deduplicate work.
package page
