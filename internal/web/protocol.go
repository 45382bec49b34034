package web

import (
	"encoding/json"

	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/round"
)

// Client → server message types.
const (
	msgStart             = "start"
	msgSelect            = "select"
	msgAdvance           = "advance"
	msgListen            = "listen"
	msgEnd               = "end"
	msgExit              = "exit"
	msgRecognitionResult = "recognition_result"
	msgRecognitionEnd    = "recognition_end"
	msgRecognitionError  = "recognition_error"
)

// Server → client message types.
const (
	msgReady         = "ready"
	msgRound         = "round"
	msgHighlight     = "highlight"
	msgMark          = "mark"
	msgFeedback      = "feedback"
	msgClearFeedback = "clear_feedback"
	msgAwaitAdvance  = "await_advance"
	msgResults       = "results"
	msgListening     = "listening"
	msgAlert         = "alert"
	msgOutcome       = "outcome"
	msgCelebrate     = "celebrate"
	msgRecognizer    = "recognizer"
	msgError         = "error"
)

// Recognition error codes a browser reports. They follow the Web Speech API
// error names.
const (
	recErrNotAllowed        = "not-allowed"
	recErrServiceNotAllowed = "service-not-allowed"
	recErrNotSupported      = "not-supported"
)

// inbound is any client message. Fields are read according to Type.
type inbound struct {
	Type  string                  `json:"type"`
	Mode  game.Mode               `json:"mode,omitempty"`
	Point *pointset.LocationPoint `json:"point,omitempty"`
	Text  string                  `json:"text,omitempty"`
	Final bool                    `json:"final,omitempty"`
	Error string                  `json:"error,omitempty"`
}

// outbound is any server message.
type outbound struct {
	Type     string                  `json:"type"`
	Session  string                  `json:"session,omitempty"`
	Set      *setInfo                `json:"set,omitempty"`
	Round    *game.RoundView         `json:"round,omitempty"`
	Point    *pointset.LocationPoint `json:"point,omitempty"`
	Zoom     int                     `json:"zoom,omitempty"`
	Correct  *bool                   `json:"correct,omitempty"`
	Label    string                  `json:"label,omitempty"`
	Text     string                  `json:"text,omitempty"`
	Tone     game.Tone               `json:"tone,omitempty"`
	Results  *round.Summary          `json:"results,omitempty"`
	Active   *bool                   `json:"active,omitempty"`
	Title    string                  `json:"title,omitempty"`
	Score    int                     `json:"score,omitempty"`
	Command  string                  `json:"command,omitempty"`
	Language string                  `json:"language,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// setInfo is the part of a set a player needs to draw the map.
type setInfo struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Mode     pointset.MapMode `json:"mode"`
	ImageURL string           `json:"image_url,omitempty"`
	Points   int              `json:"points"`
}

func decodeInbound(data []byte) (inbound, error) {
	var m inbound
	err := json.Unmarshal(data, &m)
	return m, err
}
