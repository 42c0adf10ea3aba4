// Package ebml extracts the title from a possibly truncated prefix of a
// Matroska/WebM file.
//
// Only the elements needed to reach Segment → Info → Title are interpreted.
// Every other element is skipped by its declared size. The scanner is
// tolerant of partial input: when the data ends mid-element it stops and
// returns whatever was found so far.
package ebml
