package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/recognition"
	"github.com/MrWong99/geoquiz/internal/round"
	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

const (
	writeTimeout   = 5 * time.Second
	readLimitBytes = 1 << 20
	outboundQueue  = 128
)

// Recognition sources a player can pick with the "recognition" query
// parameter.
const (
	recognitionBrowser = "browser"
	recognitionServer  = "server"
	recognitionNone    = "none"
)

var errSessionEnded = errors.New("web: game session ended")

// play upgrades to a WebSocket and runs one game session over it.
func (s *Server) play(w http.ResponseWriter, r *http.Request) {
	set, err := s.cfg.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	source := s.recognitionSource(r)
	rc := s.cfg.Recognition()

	var conv *recognition.PCMConverter
	if source == recognitionServer {
		conv, err = captureConverter(r, rc.SampleRate, observe.Logger(r.Context()))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		// Accept has already written the response.
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	conn.SetReadLimit(readLimitBytes)

	player, _ := ownerOf(r)
	sock := newSocket(conn)
	log := observe.Logger(r.Context()).With("set_id", set.ID)

	var (
		client *clientRecognizer
		stream *recognition.StreamRecognizer
	)
	req := GameRequest{
		Set:       set,
		Player:    player,
		Presenter: sock,
		Effects:   sock,
	}
	switch source {
	case recognitionBrowser:
		req.NewRecognizer = func(sink recognition.EventSink) recognition.Recognizer {
			client = newClientRecognizer(sock.send, rc.Language, sink)
			return client
		}
	case recognitionServer:
		streamCfg := stt.StreamConfig{
			SampleRate: rc.SampleRate,
			Channels:   1,
			Language:   rc.Language,
			Keywords:   stt.KeywordsFor(set.Names(), rc.KeywordBoost),
		}
		req.NewRecognizer = func(sink recognition.EventSink) recognition.Recognizer {
			stream = recognition.NewStreamRecognizer(s.cfg.STT, streamCfg, sink)
			return stream
		}
	}

	// The socket outlives the request context once hijacked, so games are
	// bound to a context the handler cancels itself.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sess, err := s.cfg.Games.Open(ctx, req)
	if err != nil {
		log.Error("open game", "err", err)
		conn.Close(websocket.StatusInternalError, "cannot open game")
		return
	}
	log = log.With("session", sess.ID, "recognition", source)
	log.Info("player connected")

	sock.send(outbound{Type: msgReady, Session: sess.ID, Set: &setInfo{
		ID:       set.ID,
		Name:     set.Name,
		Mode:     set.Mode,
		ImageURL: set.ImageURL,
		Points:   len(set.Points),
	}})

	p := &playerConn{sess: sess, sock: sock, client: client, stream: stream, conv: conv, log: log}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sock.writeLoop(gctx) })
	g.Go(func() error { return p.readLoop(gctx) })
	g.Go(func() error {
		select {
		case <-sess.Done():
			return errSessionEnded
		case <-gctx.Done():
			return nil
		}
	})
	err = g.Wait()

	sess.Close()
	sock.close()

	switch {
	case errors.Is(err, errSessionEnded):
		conn.Close(websocket.StatusGoingAway, "game closed")
	case websocket.CloseStatus(err) != -1:
		// The client closed the connection.
		conn.CloseNow()
	default:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("player connection failed", "err", err)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
	log.Info("player disconnected")
}

func (s *Server) recognitionSource(r *http.Request) string {
	switch src := r.URL.Query().Get("recognition"); src {
	case recognitionNone:
		return recognitionNone
	case recognitionServer:
		if s.cfg.STT != nil {
			return recognitionServer
		}
		s.log.Warn("server-side recognition requested but no stt provider is configured; using the browser")
		return recognitionBrowser
	default:
		return recognitionBrowser
	}
}

// captureConverter reads the client's capture format from the "rate" and
// "channels" query parameters. Missing values mean the client already sends
// mono PCM at the stream rate.
func captureConverter(r *http.Request, rate int, log *slog.Logger) (*recognition.PCMConverter, error) {
	q := r.URL.Query()
	var src recognition.PCMFormat
	for _, f := range []struct {
		key string
		dst *int
	}{{"rate", &src.SampleRate}, {"channels", &src.Channels}} {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("invalid " + f.key)
		}
		*f.dst = n
	}
	return recognition.NewPCMConverter(src, recognition.PCMFormat{SampleRate: rate, Channels: 1}, log)
}

// playerConn routes one connection's inbound messages into its session.
type playerConn struct {
	sess   *game.Session
	sock   *socket
	client *clientRecognizer
	stream *recognition.StreamRecognizer
	conv   *recognition.PCMConverter
	log    *slog.Logger
}

func (p *playerConn) readLoop(ctx context.Context) error {
	for {
		typ, data, err := p.sock.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageBinary {
			if p.stream != nil {
				if pcm := p.conv.Convert(data); len(pcm) > 0 {
					_ = p.stream.SendAudio(pcm)
				}
			}
			continue
		}
		msg, err := decodeInbound(data)
		if err != nil {
			p.sock.send(outbound{Type: msgError, Error: "malformed message"})
			continue
		}
		if err := p.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

// dispatch handles one message. Only session failures are returned; game
// errors are reported to the player.
func (p *playerConn) dispatch(ctx context.Context, msg inbound) error {
	var gameErr error
	var run func(c *game.Controller)

	switch msg.Type {
	case msgStart:
		run = func(c *game.Controller) { gameErr = c.StartGame(ctx, msg.Mode) }
	case msgSelect:
		if msg.Point == nil {
			p.sock.send(outbound{Type: msgError, Error: "select needs a point"})
			return nil
		}
		pt := *msg.Point
		run = func(c *game.Controller) { gameErr = c.SelectMarker(pt) }
	case msgAdvance:
		run = func(c *game.Controller) { gameErr = c.AdvanceRound() }
	case msgListen:
		run = func(c *game.Controller) { gameErr = c.StartListening(ctx) }
	case msgEnd:
		run = func(c *game.Controller) { _, gameErr = c.EndGame() }
	case msgExit:
		run = func(c *game.Controller) { c.Exit() }
	case msgRecognitionResult:
		if p.client != nil {
			p.client.result(msg.Text, msg.Final)
		}
		return nil
	case msgRecognitionEnd:
		if p.client != nil {
			p.client.ended()
		}
		return nil
	case msgRecognitionError:
		if p.client != nil {
			p.client.failed(msg.Error)
		}
		return nil
	default:
		p.sock.send(outbound{Type: msgError, Error: "unknown message type " + msg.Type})
		return nil
	}

	if err := p.sess.Do(ctx, run); err != nil {
		if errors.Is(err, game.ErrSessionClosed) {
			return errSessionEnded
		}
		return err
	}
	switch {
	case gameErr == nil, errors.Is(gameErr, game.ErrEmptySet), errors.Is(gameErr, recognition.ErrUnsupported),
		errors.Is(gameErr, recognition.ErrPermissionDenied):
		// Already shown to the player as an alert.
	case errors.Is(gameErr, round.ErrLocked), errors.Is(gameErr, round.ErrNotActive):
		p.log.Debug("late game input ignored", "type", msg.Type, "err", gameErr)
	default:
		p.sock.send(outbound{Type: msgError, Error: gameErr.Error()})
	}
	return nil
}

// ── socket ───────────────────────────────────────────────────────────────────

// socket queues server messages for a single writer goroutine. It renders
// the game, so sends never block the session loop for long.
type socket struct {
	conn *websocket.Conn
	out  chan outbound
	done chan struct{}
	once sync.Once
}

var (
	_ game.Presenter = (*socket)(nil)
	_ game.Effects   = (*socket)(nil)
)

func newSocket(conn *websocket.Conn) *socket {
	return &socket{
		conn: conn,
		out:  make(chan outbound, outboundQueue),
		done: make(chan struct{}),
	}
}

func (s *socket) send(m outbound) {
	select {
	case s.out <- m:
	case <-s.done:
	}
}

func (s *socket) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *socket) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, s.conn, m)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (s *socket) ShowRound(v game.RoundView) {
	s.send(outbound{Type: msgRound, Round: &v})
}

func (s *socket) Highlight(p pointset.LocationPoint, zoom int) {
	s.send(outbound{Type: msgHighlight, Point: &p, Zoom: zoom})
}

func (s *socket) Mark(p pointset.LocationPoint, correct bool, label string) {
	s.send(outbound{Type: msgMark, Point: &p, Correct: &correct, Label: label})
}

func (s *socket) Feedback(text string, tone game.Tone) {
	s.send(outbound{Type: msgFeedback, Text: text, Tone: tone})
}

func (s *socket) ClearFeedback() { s.send(outbound{Type: msgClearFeedback}) }

func (s *socket) AwaitAdvance() { s.send(outbound{Type: msgAwaitAdvance}) }

func (s *socket) ShowResults(sum round.Summary) {
	s.send(outbound{Type: msgResults, Results: &sum})
}

func (s *socket) Listening(active bool) {
	s.send(outbound{Type: msgListening, Active: &active})
}

func (s *socket) Alert(title, text string) {
	s.send(outbound{Type: msgAlert, Title: title, Text: text})
}

func (s *socket) Outcome(correct bool) {
	s.send(outbound{Type: msgOutcome, Correct: &correct})
}

func (s *socket) Celebrate(score int) {
	s.send(outbound{Type: msgCelebrate, Score: score})
}
