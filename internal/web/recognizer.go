package web

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/geoquiz/internal/recognition"
)

// clientRecognizer drives the browser's speech recognition over the game
// socket. Start and Stop become recognizer commands; the browser answers
// with recognition_result, recognition_end and recognition_error messages.
type clientRecognizer struct {
	send     func(outbound)
	language string
	sink     recognition.EventSink

	mu      sync.Mutex
	running bool
}

var _ recognition.Recognizer = (*clientRecognizer)(nil)

func newClientRecognizer(send func(outbound), language string, sink recognition.EventSink) *clientRecognizer {
	return &clientRecognizer{send: send, language: language, sink: sink}
}

func (c *clientRecognizer) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return recognition.ErrAlreadyActive
	}
	c.running = true
	c.mu.Unlock()

	c.send(outbound{Type: msgRecognizer, Command: "start", Language: c.language})
	return nil
}

func (c *clientRecognizer) Stop() error {
	c.mu.Lock()
	was := c.running
	c.running = false
	c.mu.Unlock()

	if was {
		c.send(outbound{Type: msgRecognizer, Command: "stop"})
	}
	return nil
}

func (c *clientRecognizer) result(text string, isFinal bool) {
	c.sink.OnResult(text, isFinal)
}

func (c *clientRecognizer) ended() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.sink.OnEnd()
}

// failed reports a browser error. The browser always follows an error with
// an end event, so running is left for ended to clear.
func (c *clientRecognizer) failed(code string) {
	c.sink.OnError(browserError(code))
}

func browserError(code string) error {
	switch code {
	case recErrNotAllowed, recErrServiceNotAllowed:
		return fmt.Errorf("%w: %s", recognition.ErrPermissionDenied, code)
	case recErrNotSupported:
		return fmt.Errorf("%w: %s", recognition.ErrUnsupported, code)
	case "":
		return errors.New("web: recognition error")
	default:
		return fmt.Errorf("web: recognition error: %s", code)
	}
}
