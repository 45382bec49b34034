package pointset

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/geoquiz/internal/observe"
)

// InstrumentedStore wraps a [Store] with a span and a latency sample per call.
type InstrumentedStore struct {
	next    Store
	metrics *observe.Metrics
}

var _ Store = (*InstrumentedStore)(nil)

// Instrument wraps next. m must not be nil.
func Instrument(next Store, m *observe.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "pointset."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		s.metrics.RecordStoreOp(ctx, op, time.Since(start))
		observe.EndSpan(span, err)
	}
}

func (s *InstrumentedStore) Create(ctx context.Context, set *PointSet) (err error) {
	ctx, done := s.begin(ctx, "create", attribute.String("owner_id", set.OwnerID))
	defer func() { done(err) }()
	return s.next.Create(ctx, set)
}

func (s *InstrumentedStore) Get(ctx context.Context, id string) (_ *PointSet, err error) {
	ctx, done := s.begin(ctx, "get", attribute.String("set_id", id))
	defer func() { done(err) }()
	return s.next.Get(ctx, id)
}

func (s *InstrumentedStore) List(ctx context.Context, ownerID string) (_ []PointSet, err error) {
	ctx, done := s.begin(ctx, "list", attribute.String("owner_id", ownerID))
	defer func() { done(err) }()
	return s.next.List(ctx, ownerID)
}

func (s *InstrumentedStore) Update(ctx context.Context, set *PointSet) (err error) {
	ctx, done := s.begin(ctx, "update", attribute.String("set_id", set.ID))
	defer func() { done(err) }()
	return s.next.Update(ctx, set)
}

func (s *InstrumentedStore) Delete(ctx context.Context, id string) (err error) {
	ctx, done := s.begin(ctx, "delete", attribute.String("set_id", id))
	defer func() { done(err) }()
	return s.next.Delete(ctx, id)
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
