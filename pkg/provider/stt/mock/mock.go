// Package mock provides test doubles for [stt.Provider] and
// [stt.SessionHandle].
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	// ... start a stream through p ...
//	sess.Say("Madrid", true)
//	sess.Hangup()
package mock

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// Provider records stream configurations and hands out sessions.
type Provider struct {
	mu sync.Mutex

	// Sessions are returned one per StartStream call, in order. Once they
	// run out, Session is returned, and when that is nil a fresh
	// [NewSession].
	Sessions []stt.SessionHandle
	Session  stt.SessionHandle

	// StartStreamErr fails every StartStream call.
	StartStreamErr error

	configs []stt.StreamConfig
}

func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs = append(p.configs, cfg)
	switch {
	case p.StartStreamErr != nil:
		return nil, p.StartStreamErr
	case len(p.Sessions) > 0:
		next := p.Sessions[0]
		p.Sessions = p.Sessions[1:]
		return next, nil
	case p.Session != nil:
		return p.Session, nil
	default:
		return NewSession(), nil
	}
}

// StartStreamCallCount reports how many streams were requested.
func (p *Provider) StartStreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.configs)
}

// LastConfig returns the configuration of the latest StartStream call.
func (p *Provider) LastConfig() (stt.StreamConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.configs) == 0 {
		return stt.StreamConfig{}, false
	}
	return p.configs[len(p.configs)-1], true
}

// Session is a scripted transcription stream. Transcripts are queued with
// [Session.Say]; the stream ends with [Session.Hangup] or Close.
type Session struct {
	partials chan stt.Transcript
	finals   chan stt.Transcript
	hangup   sync.Once

	mu       sync.Mutex
	audio    [][]byte
	keywords [][]stt.KeywordBoost
	closed   int

	// SendAudioErr fails every SendAudio call.
	SendAudioErr error
}

// NewSession returns a session that buffers up to 16 transcripts per kind.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, 16),
		finals:   make(chan stt.Transcript, 16),
	}
}

// Say queues a transcript as a partial or a final.
func (s *Session) Say(text string, final bool) {
	t := stt.Transcript{Text: text, IsFinal: final}
	if final {
		s.finals <- t
		return
	}
	s.partials <- t
}

// Hangup ends the stream as if the provider had closed it.
func (s *Session) Hangup() {
	s.hangup.Do(func() {
		close(s.partials)
		close(s.finals)
	})
}

func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return errors.New("mock: send on closed session")
	}
	s.audio = append(s.audio, slices.Clone(chunk))
	return s.SendAudioErr
}

func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

func (s *Session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = append(s.keywords, slices.Clone(keywords))
	return nil
}

// Close hangs up and counts the call.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	s.Hangup()
	return nil
}

// Audio returns copies of the chunks received so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audio)
}

// SendAudioCallCount reports how many chunks were received.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

// Keywords returns every keyword list passed to SetKeywords.
func (s *Session) Keywords() [][]stt.KeywordBoost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.keywords)
}

// Closed reports how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
