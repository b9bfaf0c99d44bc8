/*
Package stream runs the per-connection event stream of a signed-in user.

This file implements the Emitter that writes frames to a kept-open text/event-stream HTTP response.
*/
package stream

import (
	"fmt"
	"net/http"
	"time"
)

// SSEWriter writes frames to an HTTP response as server-sent events.
// Headers are only sent with the first frame, so a session rejected before
// its acknowledgment can still answer with an ordinary error response.
type SSEWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

// NewSSEWriter wraps w. The writer must support flushing, directly or through Unwrap.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	return &SSEWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// Emit writes and flushes f. Any failure means the peer is gone and is reported as ErrTransportClosed.
func (s *SSEWriter) Emit(f Frame) error {
	if !s.started {
		s.start()
	}

	if _, err := f.WriteTo(s.w); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	return nil
}

func (s *SSEWriter) start() {
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// The server-wide write timeout would otherwise cut the stream.
	// Writers without deadline support return http.ErrNotSupported.
	_ = s.rc.SetWriteDeadline(time.Time{})

	s.w.WriteHeader(http.StatusOK)
}
