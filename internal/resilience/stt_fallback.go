package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/pkg/provider/stt"
)

var _ stt.Provider = (*STTFallback)(nil)

// STTFallback is an [stt.Provider] that opens streams on the first healthy
// backend.
type STTFallback struct {
	group   *FallbackGroup[stt.Provider]
	metrics *observe.Metrics
}

// STTOption configures an [STTFallback].
type STTOption func(*STTFallback)

// WithMetrics records provider requests and errors on m.
func WithMetrics(m *observe.Metrics) STTOption {
	return func(f *STTFallback) {
		f.metrics = m
	}
}

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primaryName string, primary stt.Provider, cfg CircuitBreakerConfig, opts ...STTOption) *STTFallback {
	f := &STTFallback{group: NewFallbackGroup[stt.Provider](cfg)}
	for _, o := range opts {
		o(f)
	}
	f.group.Add(primaryName, primary)
	return f
}

// AddFallback registers another backend after the existing ones.
func (f *STTFallback) AddFallback(name string, p stt.Provider) {
	f.group.Add(name, p)
}

// States reports the breaker state per backend.
func (f *STTFallback) States() map[string]State {
	return f.group.States()
}

// StartStream opens a session on the first backend that accepts it.
//
// A credential rejection only surfaces as [stt.ErrUnauthorized] when every
// backend rejected the caller; otherwise it is one failure among many.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	var rejected int
	h, err := ExecuteWithResult(f.group, func(m Member[stt.Provider]) (stt.SessionHandle, error) {
		h, err := m.Value.StartStream(ctx, cfg)
		f.record(ctx, m.Name, err)
		if errors.Is(err, stt.ErrUnauthorized) {
			rejected++
			return nil, fmt.Errorf("credentials rejected: %v", err)
		}
		return h, err
	})
	if err == nil {
		return h, nil
	}
	if rejected == f.group.Len() {
		return nil, fmt.Errorf("resilience: stt: %w", stt.ErrUnauthorized)
	}
	return nil, fmt.Errorf("resilience: stt: %w", err)
}

func (f *STTFallback) record(ctx context.Context, name string, err error) {
	if f.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		f.metrics.RecordProviderError(ctx, name, "stt")
	}
	f.metrics.RecordProviderRequest(ctx, name, "stt", status)
}
