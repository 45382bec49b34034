// Package mock provides test doubles for the recognition package.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/geoquiz/internal/recognition"
)

var _ recognition.Recognizer = (*Recognizer)(nil)

// Recognizer is a mock [recognition.Recognizer].
type Recognizer struct {
	mu sync.Mutex

	// StartErrs are returned by successive Start calls. Once drained, Start
	// returns StartErr.
	StartErrs []error

	// StartErr is returned by Start when StartErrs is empty.
	StartErr error

	// StopErr is returned by every Stop call.
	StopErr error

	startCalls int
	stopCalls  int
	running    bool
}

// Start records the call and returns the next queued error.
func (r *Recognizer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startCalls++
	err := r.StartErr
	if len(r.StartErrs) > 0 {
		err = r.StartErrs[0]
		r.StartErrs = r.StartErrs[1:]
	}
	if err == nil {
		r.running = true
	}
	return err
}

// Stop records the call and returns StopErr.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCalls++
	r.running = false
	return r.StopErr
}

// StartCalls returns the number of Start calls.
func (r *Recognizer) StartCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startCalls
}

// StopCalls returns the number of Stop calls.
func (r *Recognizer) StopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCalls
}

// Running reports whether the last Start succeeded without a later Stop.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Handler is a mock [recognition.Handler].
type Handler struct {
	mu sync.Mutex

	// Keep is returned by KeepListening.
	Keep bool

	Transcripts []Transcript
	Listening   []bool
	Failures    []error
}

// Transcript records one HandleTranscript call.
type Transcript struct {
	Text    string
	IsFinal bool
}

var _ recognition.Handler = (*Handler)(nil)

// HandleTranscript records the call.
func (h *Handler) HandleTranscript(text string, isFinal bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Transcripts = append(h.Transcripts, Transcript{Text: text, IsFinal: isFinal})
}

// KeepListening returns Keep.
func (h *Handler) KeepListening() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Keep
}

// ListeningChanged records the call.
func (h *Handler) ListeningChanged(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Listening = append(h.Listening, active)
}

// Failure records the call.
func (h *Handler) Failure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Failures = append(h.Failures, err)
}

// SetKeep updates Keep.
func (h *Handler) SetKeep(keep bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Keep = keep
}
