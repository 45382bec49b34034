package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "es", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "interim_results", "true", q.Get("interim_results"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_LanguageOverriddenByCfg(t *testing.T) {
	p, err := New("key", WithLanguage("es"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{Language: "es-ES"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	assertEqual(t, "language", "es-ES", u.Query().Get("language"))
	assertEqual(t, "sample_rate", "16000", u.Query().Get("sample_rate"))
}

func TestBuildURL_KeytermsForNova3(t *testing.T) {
	p, _ := New("key")

	rawURL, err := p.buildURL(stt.StreamConfig{Keywords: []stt.KeywordBoost{
		{Keyword: "Ourense", Boost: 2},
		{Keyword: "Albacete", Boost: 2},
	}})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()
	if got := q["keyterm"]; len(got) != 2 || got[0] != "Ourense" || got[1] != "Albacete" {
		t.Errorf("keyterm = %v", got)
	}
	if len(q["keywords"]) != 0 {
		t.Errorf("nova-3 should not send keywords, got %v", q["keywords"])
	}
}

func TestBuildURL_BoostedKeywordsForOlderModels(t *testing.T) {
	p, _ := New("key", WithModel("nova-2"), WithSampleRate(48000))

	rawURL, err := p.buildURL(stt.StreamConfig{Keywords: []stt.KeywordBoost{{Keyword: "Zamora", Boost: 3.5}}})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()
	assertEqual(t, "keywords", "Zamora:3.5", q.Get("keywords"))
	assertEqual(t, "sample_rate", "48000", q.Get("sample_rate"))
}

// ---- response parsing ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	msg := []byte(`{"type":"Results","is_final":true,"start":1.5,"duration":0.75,
		"channel":{"alternatives":[{"transcript":"Sevilla","confidence":0.93}]}}`)

	tr, ok := parseResult(msg)
	if !ok {
		t.Fatal("expected ok")
	}
	assertEqual(t, "text", "Sevilla", tr.Text)
	if !tr.IsFinal {
		t.Error("IsFinal = false")
	}
	if tr.Confidence != 0.93 {
		t.Errorf("Confidence = %v", tr.Confidence)
	}
	if tr.Timestamp != 1500*time.Millisecond || tr.Duration != 750*time.Millisecond {
		t.Errorf("Timestamp = %v Duration = %v", tr.Timestamp, tr.Duration)
	}
}

func TestParseDeepgramResponse_Ignored(t *testing.T) {
	cases := map[string]string{
		"metadata":     `{"type":"Metadata","request_id":"x"}`,
		"empty alts":   `{"type":"Results","channel":{"alternatives":[]}}`,
		"silence":      `{"type":"Results","channel":{"alternatives":[{"transcript":"  "}]}}`,
		"invalid json": `{not json`,
	}
	for name, msg := range cases {
		if _, ok := parseResult([]byte(msg)); ok {
			t.Errorf("%s: expected message to be ignored", name)
		}
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

// ---- streaming against a local server ----

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartStream_RoundTrip(t *testing.T) {
	gotAudio := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()

		_, audio, err := c.Read(ctx)
		if err != nil {
			return
		}
		gotAudio <- audio
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"Sev"}]}}`))
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Sevilla"}]}}`))
		// Wait for CloseStream.
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint(wsURL(srv)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	if err := sess.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	select {
	case a := <-gotAudio:
		if len(a) != 4 {
			t.Errorf("server got %d bytes, want 4", len(a))
		}
	case <-ctx.Done():
		t.Fatal("server never received audio")
	}

	select {
	case p := <-sess.Partials():
		assertEqual(t, "partial", "Sev", p.Text)
	case <-ctx.Done():
		t.Fatal("no partial")
	}
	select {
	case f := <-sess.Finals():
		assertEqual(t, "final", "Sevilla", f.Text)
	case <-ctx.Done():
		t.Fatal("no final")
	}

	if err := sess.SetKeywords(nil); !errors.Is(err, stt.ErrNotSupported) {
		t.Errorf("SetKeywords err = %v, want ErrNotSupported", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := sess.SendAudio([]byte{0}); err == nil {
		t.Error("SendAudio after Close: err = nil")
	}
}

func TestStartStream_KeepAliveWhileSilent(t *testing.T) {
	frames := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		for {
			typ, data, err := c.Read(r.Context())
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			select {
			case frames <- string(data):
			default:
			}
		}
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoint(wsURL(srv)), WithKeepAlive(20*time.Millisecond))
	sess, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	select {
	case f := <-frames:
		assertEqual(t, "frame", `{"type":"KeepAlive"}`, f)
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive during silence")
	}
}

func TestStartStream_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("wrong", WithEndpoint(wsURL(srv)))
	_, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if !errors.Is(err, stt.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
