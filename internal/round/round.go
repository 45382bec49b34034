// Package round implements the round progression of a single quiz game: the
// shuffled queue of targets, the cursor into it, the score, and the
// processing lock that admits exactly one resolution per round.
//
// State machine:
//
//	AwaitingStart ──Begin──▶ RoundActive ──Resolve──▶ Resolved
//	                             ▲                       │
//	                             └───────Advance─────────┤
//	                                                     ▼
//	                                                  GameOver
//
// Entering a round when the cursor has reached the end of the queue moves the
// machine to GameOver instead of RoundActive. A Machine is not safe for
// concurrent use; game sessions drive it from a single event loop.
package round

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/geoquiz/internal/clock"
	"github.com/MrWong99/geoquiz/internal/pointset"
)

// State is the lifecycle position of a [Machine].
type State int

const (
	AwaitingStart State = iota
	RoundActive
	Resolved
	GameOver
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting_start"
	case RoundActive:
		return "round_active"
	case Resolved:
		return "resolved"
	case GameOver:
		return "game_over"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is how a round was resolved.
type Outcome int

const (
	Correct Outcome = iota
	Incorrect
	Skipped
)

// String returns the outcome name used in metrics.
func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

var (
	// ErrEmpty is returned by [New] for a set without points.
	ErrEmpty = errors.New("round: no points to play")
	// ErrLocked is returned when a round has already been resolved.
	ErrLocked = errors.New("round: round already resolved")
	// ErrNotActive is returned when an operation needs a different state.
	ErrNotActive = errors.New("round: no active round")
)

// Summary is the final tally of a game.
type Summary struct {
	Score        int `json:"score"`
	RoundsPlayed int `json:"rounds_played"`
}

// Option configures a [Machine].
type Option func(*Machine)

// WithClock sets the time source for round timing. Default: [clock.Real].
func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithRand sets the random source used to shuffle the queue.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) { m.rand = r }
}

// WithMaxSkips caps how many times a single point is requeued by skipping.
// Once a point has been requeued n times, further skips still end the round
// but no longer append the point. n <= 0 means unlimited, which is the
// default.
func WithMaxSkips(n int) Option {
	return func(m *Machine) { m.maxSkips = n }
}

// Machine holds the round state of one game.
type Machine struct {
	clock    clock.Clock
	rand     *rand.Rand
	maxSkips int

	queue     []pointset.LocationPoint
	skips     map[pointset.LocationPoint]int
	cursor    int
	score     int
	locked    bool
	state     State
	startedAt time.Time
}

// New builds a machine over a uniformly shuffled copy of points.
func New(points []pointset.LocationPoint, opts ...Option) (*Machine, error) {
	if len(points) == 0 {
		return nil, ErrEmpty
	}
	m := &Machine{
		clock: clock.Real{},
		skips: make(map[pointset.LocationPoint]int),
		queue: make([]pointset.LocationPoint, len(points)),
	}
	for _, o := range opts {
		o(m)
	}
	copy(m.queue, points)

	shuffle := rand.Shuffle
	if m.rand != nil {
		shuffle = m.rand.Shuffle
	}
	shuffle(len(m.queue), func(i, j int) {
		m.queue[i], m.queue[j] = m.queue[j], m.queue[i]
	})
	return m, nil
}

// Begin enters the first round.
func (m *Machine) Begin() error {
	if m.state != AwaitingStart {
		return fmt.Errorf("round: begin in state %s: %w", m.state, ErrNotActive)
	}
	m.enter()
	return nil
}

// Resolve ends the current round with outcome. It succeeds at most once per
// round; later calls return [ErrLocked] without changing anything.
// A skip appends the current target to the end of the queue unless the
// point has reached the skip cap.
func (m *Machine) Resolve(outcome Outcome) error {
	switch m.state {
	case RoundActive:
	case Resolved:
		return ErrLocked
	default:
		return fmt.Errorf("round: resolve in state %s: %w", m.state, ErrNotActive)
	}
	if m.locked {
		return ErrLocked
	}
	m.locked = true
	m.state = Resolved

	switch outcome {
	case Correct:
		m.score++
	case Skipped:
		target := m.queue[m.cursor]
		if m.maxSkips <= 0 || m.skips[target] < m.maxSkips {
			m.skips[target]++
			m.queue = append(m.queue, target)
		}
	}
	return nil
}

// Advance moves from a resolved round to the next one, or to GameOver when
// the queue is exhausted.
func (m *Machine) Advance() error {
	if m.state != Resolved {
		return fmt.Errorf("round: advance in state %s: %w", m.state, ErrNotActive)
	}
	m.cursor++
	m.enter()
	return nil
}

// enter performs round entry for the current cursor.
func (m *Machine) enter() {
	if m.cursor >= len(m.queue) {
		m.state = GameOver
		m.locked = true
		return
	}
	m.state = RoundActive
	m.locked = false
	m.startedAt = m.clock.Now()
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Locked reports whether the current round can no longer be resolved.
func (m *Machine) Locked() bool { return m.locked }

// Current returns the target of the current round. ok is false outside
// RoundActive and Resolved.
func (m *Machine) Current() (p pointset.LocationPoint, ok bool) {
	if m.state != RoundActive && m.state != Resolved {
		return pointset.LocationPoint{}, false
	}
	return m.queue[m.cursor], true
}

// Elapsed returns the time since the current round started.
func (m *Machine) Elapsed() time.Duration {
	return m.clock.Now().Sub(m.startedAt)
}

// Progress returns the 1-based number of the current round and the current
// queue length.
func (m *Machine) Progress() (current, total int) {
	return min(m.cursor+1, len(m.queue)), len(m.queue)
}

// Score returns the number of correctly resolved rounds.
func (m *Machine) Score() int { return m.score }

// Summary returns the score and the number of rounds played, which is the
// queue length including requeued skips.
func (m *Machine) Summary() Summary {
	return Summary{Score: m.score, RoundsPlayed: len(m.queue)}
}
