// Package media turns a partial media download into a poster thumbnail.
//
// [FFmpegExtractor] decodes the first video frame from the leading bytes of a
// file. [ThumbnailGenerator] scales that frame down by repeated halving and
// encodes it as JPEG, or as WebP when libvips has been initialised with
// [InitVips].
package media
