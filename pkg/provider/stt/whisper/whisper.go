// Package whisper provides an STT provider backed by a whisper.cpp server.
//
// It connects to a running whisper-server binary (POST /inference) and
// simulates streaming by buffering incoming PCM, segmenting utterances with
// an energy-based silence detector, and submitting each utterance as a batch
// inference request. Quiz answers are short, so the defaults favour quick
// segmentation over long dictation.
//
// whisper.cpp has no keyword boosting, but it accepts an initial prompt. The
// session turns its keywords into a prompt listing the expected place names,
// which biases decoding toward their spelling.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8081", whisper.WithLanguage("es"))
//	handle, err := p.StartStream(ctx, cfg)
//	handle.SendAudio(pcmChunk)
//	transcript := <-handle.Finals()
//	handle.Close()
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

const (
	// defaultRMSThreshold is the RMS energy (16-bit PCM units) below which
	// audio is considered silent.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "es"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 400
	defaultMaxBufferDurationMs = 5_000
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server.
// When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language. Region subtags are dropped because
// whisper.cpp expects ISO 639-1 codes ("es-ES" becomes "es").
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSampleRate sets the default audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithSilenceThresholdMs sets the consecutive-silence duration that ends an
// utterance. Default: 400 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) {
		p.silenceThresholdMs = ms
	}
}

// WithMaxBufferDurationMs sets the maximum utterance length before a flush is
// forced regardless of silence. Default: 5 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) {
		p.maxBufferDurationMs = ms
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
// Each session keeps its own audio buffer and goroutine.
type Provider struct {
	serverURL           string
	model               string
	language            string
	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
	httpClient          *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:           strings.TrimRight(serverURL, "/"),
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
		httpClient:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new transcription session. No network connection is
// made until the first utterance is flushed, so the only possible error is
// an already cancelled ctx.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		serverURL:           p.serverURL,
		model:               p.model,
		language:            baseLanguage(lang),
		sampleRate:          sr,
		channels:            ch,
		silenceThresholdMs:  p.silenceThresholdMs,
		maxBufferDurationMs: p.maxBufferDurationMs,
		httpClient:          p.httpClient,
		prompt:              promptFor(cfg.Keywords),

		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(context.WithoutCancel(ctx))

	return s, nil
}

// baseLanguage strips region subtags from a BCP-47 tag.
func baseLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}

// promptFor renders keywords as an initial prompt.
func promptFor(keywords []stt.KeywordBoost) string {
	if len(keywords) == 0 {
		return ""
	}
	names := make([]string, 0, len(keywords))
	for _, k := range keywords {
		names = append(names, k.Keyword)
	}
	return strings.Join(names, ", ") + "."
}

// ---- session ----------------------------------------------------------------

// session is a live whisper transcription session. Buffer state is confined
// to the processLoop goroutine.
type session struct {
	serverURL           string
	model               string
	language            string
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int
	httpClient          *http.Client

	promptMu sync.RWMutex
	prompt   string

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var errClosed = errors.New("whisper: session is closed")

// SendAudio queues a chunk of 16-bit little-endian PCM for segmentation.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errClosed
	}
}

// Partials emits a partial alongside every final; whisper.cpp cannot produce
// earlier guesses.
func (s *session) Partials() <-chan stt.Transcript { return s.partials }

// Finals emits one transcript per utterance.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the initial prompt used for subsequent utterances.
func (s *session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.promptMu.Lock()
	s.prompt = promptFor(keywords)
	s.promptMu.Unlock()
	return nil
}

// Close flushes pending speech, closes Partials and Finals, and releases the
// session. Calling Close more than once is safe.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *session) currentPrompt() string {
	s.promptMu.RLock()
	defer s.promptMu.RUnlock()
	return s.prompt
}

// processLoop owns silence detection, buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
		offset    time.Duration // audio consumed before the current utterance
	)

	bytesPerMs := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	flush := func(flushCtx context.Context) {
		pcm, speech := buffer, hadSpeech
		buffer, hadSpeech, silenceMs = nil, false, 0
		if len(pcm) == 0 || !speech {
			return
		}
		dur := time.Duration(chunkDurationMs(pcm, s.sampleRate, s.channels)) * time.Millisecond
		start := offset
		offset += dur

		text, err := s.infer(flushCtx, pcm)
		if err != nil {
			slog.Warn("whisper: inference failed", "err", err)
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}

		// Channels are buffered; drop rather than block shutdown when full.
		select {
		case s.partials <- stt.Transcript{Text: text, Timestamp: start, Duration: dur}:
		default:
		}
		select {
		case s.finals <- stt.Transcript{Text: text, IsFinal: true, Timestamp: start, Duration: dur}:
		default:
		}
	}

	for {
		select {
		case <-s.done:
			fc, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			flush(fc)
			cancel()
			return

		case chunk := <-s.audioCh:
			chunkMs := chunkDurationMs(chunk, s.sampleRate, s.channels)
			if computeRMS(chunk) < defaultRMSThreshold {
				if !hadSpeech {
					offset += time.Duration(chunkMs) * time.Millisecond
					continue
				}
				silenceMs += chunkMs
				buffer = append(buffer, chunk...)
				if silenceMs >= s.silenceThresholdMs {
					flush(ctx)
				}
				continue
			}
			hadSpeech = true
			silenceMs = 0
			buffer = append(buffer, chunk...)
			if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
				flush(ctx)
			}
		}
	}
}

// infer POSTs pcm as a WAV file to the /inference endpoint.
func (s *session) infer(ctx context.Context, pcm []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(encodeWAV(pcm, s.sampleRate, s.channels)); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := map[string]string{
		"response_format": "json",
		"temperature":     "0.0",
		"language":        s.language,
		"model":           s.model,
		"prompt":          s.currentPrompt(),
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
