package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

var _ Recognizer = (*StreamRecognizer)(nil)

// StreamRecognizer runs recognition on the server by streaming client audio
// to an [stt.Provider]. Every Start opens a fresh provider stream; the stream
// ending on its own is reported to the sink as an end event, which the
// [Manager] answers with a restart.
//
// Events are delivered to the sink from the stream's goroutine.
type StreamRecognizer struct {
	provider stt.Provider
	cfg      stt.StreamConfig
	sink     EventSink

	mu      sync.Mutex
	current stt.SessionHandle
}

// NewStreamRecognizer creates a recognizer that opens streams with cfg and
// reports to sink.
func NewStreamRecognizer(p stt.Provider, cfg stt.StreamConfig, sink EventSink) *StreamRecognizer {
	return &StreamRecognizer{provider: p, cfg: cfg, sink: sink}
}

// Start opens a provider stream.
func (r *StreamRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return ErrAlreadyActive
	}

	h, err := r.provider.StartStream(ctx, r.cfg)
	if err != nil {
		if errors.Is(err, stt.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return fmt.Errorf("recognition: open stream: %w", err)
	}
	r.current = h
	go r.pump(h)
	return nil
}

// pump forwards transcripts until both channels close.
func (r *StreamRecognizer) pump(h stt.SessionHandle) {
	partials, finals := h.Partials(), h.Finals()
	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			r.forward(t.Text, false)
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			r.forward(t.Text, true)
		}
	}

	r.mu.Lock()
	ended := r.current == h
	if ended {
		r.current = nil
	}
	r.mu.Unlock()
	// A stream closed by Stop is not an end event.
	if ended {
		_ = h.Close()
		r.sink.OnEnd()
	}
}

func (r *StreamRecognizer) forward(text string, isFinal bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.sink.OnResult(text, isFinal)
}

// SendAudio feeds PCM to the open stream. Audio that arrives while no stream
// is open is dropped.
func (r *StreamRecognizer) SendAudio(chunk []byte) error {
	r.mu.Lock()
	h := r.current
	r.mu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.SendAudio(chunk); err != nil {
		return fmt.Errorf("recognition: send audio: %w", err)
	}
	return nil
}

// Active reports whether a stream is open.
func (r *StreamRecognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Stop closes the open stream, if any.
func (r *StreamRecognizer) Stop() error {
	r.mu.Lock()
	h := r.current
	r.current = nil
	r.mu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("recognition: close stream: %w", err)
	}
	return nil
}
