// Package streaming sends response bodies to slow clients without letting
// them hold a handler open indefinitely.
//
// Send writes the body in ChunkSize pieces. Before each piece it moves the
// connection's write deadline ChunkTimeout into the future through
// http.ResponseController, so a client that keeps reading is never cut off
// while a stalled one fails with ErrWriteTimeout. The request context is
// checked between chunks and ErrClientGone is returned once it ends.
//
// Middleware response writers must implement Unwrap for the deadline to
// reach the underlying connection.
//
//	if _, err := streaming.Send(r.Context(), w, page, streaming.DefaultConfig()); err != nil {
//		logging.Debug("failed to write embedded page: %v", err)
//	}
package streaming
