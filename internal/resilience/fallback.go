package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFailed is returned when every member of a [FallbackGroup] failed or
// was skipped by its open breaker.
var ErrAllFailed = errors.New("resilience: all members failed")

// Member is one named entry of a [FallbackGroup].
type Member[T any] struct {
	Name  string
	Value T
}

type guardedMember[T any] struct {
	Member[T]
	breaker *CircuitBreaker
}

// FallbackGroup tries its members in registration order, each behind its own
// [CircuitBreaker].
type FallbackGroup[T any] struct {
	cfg CircuitBreakerConfig

	mu      sync.RWMutex
	members []guardedMember[T]
}

// NewFallbackGroup creates an empty group. cfg is the template for every
// member's breaker; its Name is replaced by the member name.
func NewFallbackGroup[T any](cfg CircuitBreakerConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a member. The first member added is the primary.
func (g *FallbackGroup[T]) Add(name string, value T) {
	cfg := g.cfg
	cfg.Name = name
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, guardedMember[T]{
		Member:  Member[T]{Name: name, Value: value},
		breaker: NewCircuitBreaker(cfg),
	})
}

// Len returns the number of members.
func (g *FallbackGroup[T]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// States reports each member's breaker state by name.
func (g *FallbackGroup[T]) States() map[string]State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]State, len(g.members))
	for _, m := range g.members {
		out[m.Name] = m.breaker.State()
	}
	return out
}

func (g *FallbackGroup[T]) snapshot() []guardedMember[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]guardedMember[T](nil), g.members...)
}

// Execute runs fn against each member until one succeeds.
func (g *FallbackGroup[T]) Execute(fn func(Member[T]) error) error {
	_, err := ExecuteWithResult(g, func(m Member[T]) (struct{}, error) {
		return struct{}{}, fn(m)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value. The returned error wraps [ErrAllFailed] and every member error.
func ExecuteWithResult[T, R any](g *FallbackGroup[T], fn func(Member[T]) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range g.snapshot() {
		var result R
		err := m.breaker.Execute(func() error {
			var inner error
			result, inner = fn(m.Member)
			return inner
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping member with open circuit", "member", m.Name)
		} else {
			slog.Warn("member failed, trying next", "member", m.Name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
