// Package mock provides recording test doubles for the game package.
package mock

import (
	"fmt"
	"sync"

	"github.com/MrWong99/geoquiz/internal/game"
	"github.com/MrWong99/geoquiz/internal/pointset"
	"github.com/MrWong99/geoquiz/internal/round"
)

var (
	_ game.Presenter = (*Presenter)(nil)
	_ game.Effects   = (*Effects)(nil)
)

// FeedbackCall records one Presenter.Feedback call.
type FeedbackCall struct {
	Text string
	Tone game.Tone
}

// MarkCall records one Presenter.Mark call.
type MarkCall struct {
	Point   pointset.LocationPoint
	Correct bool
	Label   string
}

// HighlightCall records one Presenter.Highlight call.
type HighlightCall struct {
	Point pointset.LocationPoint
	Zoom  int
}

// AlertCall records one Presenter.Alert call.
type AlertCall struct {
	Title string
	Text  string
}

// Presenter is a mock [game.Presenter] that records every call.
type Presenter struct {
	mu sync.Mutex

	Rounds           []game.RoundView
	Highlights       []HighlightCall
	Marks            []MarkCall
	Feedbacks        []FeedbackCall
	ClearCount       int
	AdvanceOffers    int
	Results          []round.Summary
	ListeningChanges []bool
	Alerts           []AlertCall

	// Log holds a compact line per call, in order.
	Log []string
}

func (p *Presenter) record(line string) { p.Log = append(p.Log, line) }

// ShowRound records the call.
func (p *Presenter) ShowRound(v game.RoundView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Rounds = append(p.Rounds, v)
	p.record(fmt.Sprintf("round %d/%d", v.Current, v.Total))
}

// Highlight records the call.
func (p *Presenter) Highlight(pt pointset.LocationPoint, zoom int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Highlights = append(p.Highlights, HighlightCall{Point: pt, Zoom: zoom})
	p.record("highlight " + pt.Name)
}

// Mark records the call.
func (p *Presenter) Mark(pt pointset.LocationPoint, correct bool, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Marks = append(p.Marks, MarkCall{Point: pt, Correct: correct, Label: label})
	p.record(fmt.Sprintf("mark %s %v", pt.Name, correct))
}

// Feedback records the call.
func (p *Presenter) Feedback(text string, tone game.Tone) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Feedbacks = append(p.Feedbacks, FeedbackCall{Text: text, Tone: tone})
	p.record("feedback " + string(tone))
}

// ClearFeedback records the call.
func (p *Presenter) ClearFeedback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ClearCount++
	p.record("clear")
}

// AwaitAdvance records the call.
func (p *Presenter) AwaitAdvance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AdvanceOffers++
	p.record("await")
}

// ShowResults records the call.
func (p *Presenter) ShowResults(s round.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Results = append(p.Results, s)
	p.record(fmt.Sprintf("results %d/%d", s.Score, s.RoundsPlayed))
}

// Listening records the call.
func (p *Presenter) Listening(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListeningChanges = append(p.ListeningChanges, active)
	p.record(fmt.Sprintf("listening %v", active))
}

// Alert records the call.
func (p *Presenter) Alert(title, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Alerts = append(p.Alerts, AlertCall{Title: title, Text: text})
	p.record("alert " + title)
}

// LastFeedback returns the most recent feedback, if any.
func (p *Presenter) LastFeedback() (FeedbackCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Feedbacks) == 0 {
		return FeedbackCall{}, false
	}
	return p.Feedbacks[len(p.Feedbacks)-1], true
}

// FeedbackCount returns the number of Feedback calls.
func (p *Presenter) FeedbackCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Feedbacks)
}

// ResultsSnapshot returns a copy of the recorded results.
func (p *Presenter) ResultsSnapshot() []round.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]round.Summary(nil), p.Results...)
}

// Effects is a mock [game.Effects].
type Effects struct {
	mu sync.Mutex

	Outcomes     []bool
	Celebrations []int
}

// Outcome records the call.
func (e *Effects) Outcome(correct bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Outcomes = append(e.Outcomes, correct)
}

// Celebrate records the call.
func (e *Effects) Celebrate(score int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Celebrations = append(e.Celebrations, score)
}
