package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of an engine event.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a structured record emitted by an engine.
type Event struct {
	Component string         // "signals", "backtest", "risk", ...
	Name      string         // short snake_case event name
	Level     Level          // severity
	Symbol    string         // optional
	Attrs     map[string]any // optional key/values
	Err       error          // optional
}

// Event names that MetricsSink maps onto domain counters.
const (
	// EventBacktestExecuted carries "strategy_type" and "status" attrs.
	EventBacktestExecuted = "backtest_executed"
	// EventRecommendation carries an "action" attr.
	EventRecommendation = "recommendation_emitted"
	// EventSymbolSkipped carries a "kind" attr.
	EventSymbolSkipped = "symbol_skipped"
)

// Sink receives engine events. Engines take a Sink at construction
// instead of writing to a process-wide logger.
type Sink interface {
	Emit(e Event)
}

// OrNop returns s, or a NopSink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}

// NopSink drops every event.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// SlogSink writes events through a slog.Logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink backed by logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Emit implements Sink.
func (s *SlogSink) Emit(e Event) {
	attrs := make([]slog.Attr, 0, len(e.Attrs)+3)
	attrs = append(attrs, slog.String("component", e.Component))
	if e.Symbol != "" {
		attrs = append(attrs, slog.String("symbol", e.Symbol))
	}
	for k, v := range e.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	s.logger.LogAttrs(context.Background(), slogLevel(e.Level), e.Name, attrs...)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MetricsSink counts every event into Metrics.EngineEvents and the
// well-known ones into their domain counters.
type MetricsSink struct {
	metrics *Metrics
}

// NewMetricsSink creates a sink counting into m.
func NewMetricsSink(m *Metrics) *MetricsSink {
	return &MetricsSink{metrics: m}
}

// Emit implements Sink.
func (s *MetricsSink) Emit(e Event) {
	s.metrics.EngineEvents.WithLabelValues(e.Component, e.Name, string(e.Level)).Inc()
	switch e.Name {
	case EventBacktestExecuted:
		s.metrics.BacktestsExecuted.WithLabelValues(attr(e, "strategy_type"), attr(e, "status")).Inc()
	case EventRecommendation:
		s.metrics.RecommendationsOut.WithLabelValues(attr(e, "action")).Inc()
	case EventSymbolSkipped:
		s.metrics.SymbolsSkipped.WithLabelValues(attr(e, "kind")).Inc()
	}
}

func attr(e Event, key string) string {
	if v, ok := e.Attrs[key].(string); ok {
		return v
	}
	return "unknown"
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events matched component and name.
func (r *Recorder) Count(component, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Component == component && e.Name == name {
			n++
		}
	}
	return n
}

var (
	_ Sink = NopSink{}
	_ Sink = (*SlogSink)(nil)
	_ Sink = (*MetricsSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = (*Recorder)(nil)
)
