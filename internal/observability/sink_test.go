package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSlogSink_WritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(NewLogger(&buf, "debug", "text"))

	sink.Emit(Event{
		Component: "risk",
		Name:      "es_undefined",
		Level:     LevelWarn,
		Symbol:    "AAPL",
		Attrs:     map[string]any{"confidence": 0.95},
		Err:       errors.New("no tail"),
	})

	out := buf.String()
	for _, want := range []string{"es_undefined", "component=risk", "symbol=AAPL", "confidence=0.95", "level=WARN", `error="no tail"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestSlogSink_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(NewLogger(&buf, "error", "json"))
	sink.Emit(Event{Component: "signals", Name: "ignored", Level: LevelInfo})
	if buf.Len() != 0 {
		t.Errorf("expected info event to be filtered, got %s", buf.String())
	}
}

func TestMetricsSink_CountsEvents(t *testing.T) {
	m := NewMetrics("test_sink", prometheus.NewRegistry())
	sink := NewMetricsSink(m)

	sink.Emit(Event{Component: "backtest", Name: "run", Level: LevelInfo})
	sink.Emit(Event{Component: "backtest", Name: "run", Level: LevelInfo})

	got := testutil.ToFloat64(m.EngineEvents.WithLabelValues("backtest", "run", "info"))
	if got != 2 {
		t.Errorf("expected 2 events counted, got %v", got)
	}
}

func TestMetricsSink_DomainCounters(t *testing.T) {
	m := NewMetrics("test_domain", prometheus.NewRegistry())
	sink := NewMetricsSink(m)

	sink.Emit(Event{Component: "recommend", Name: EventSymbolSkipped, Attrs: map[string]any{"kind": "INSUFFICIENT_DATA"}})
	sink.Emit(Event{Component: "recommend", Name: EventRecommendation, Attrs: map[string]any{"action": "BUY"}})
	sink.Emit(Event{Component: "recommend", Name: EventRecommendation, Attrs: map[string]any{"action": "BUY"}})
	sink.Emit(Event{Component: "backtest", Name: EventBacktestExecuted, Attrs: map[string]any{"strategy_type": "momentum", "status": "ok"}})
	sink.Emit(Event{Component: "backtest", Name: EventBacktestExecuted})

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"skipped", m.SymbolsSkipped.WithLabelValues("INSUFFICIENT_DATA"), 1},
		{"buy", m.RecommendationsOut.WithLabelValues("BUY"), 2},
		{"backtest ok", m.BacktestsExecuted.WithLabelValues("momentum", "ok"), 1},
		{"backtest missing attrs", m.BacktestsExecuted.WithLabelValues("unknown", "unknown"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMultiSinkAndRecorder(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	MultiSink{a, nil, b}.Emit(Event{Component: "c", Name: "n"})

	if a.Count("c", "n") != 1 || b.Count("c", "n") != 1 {
		t.Errorf("expected both recorders to receive the event")
	}
	if len(a.Events()) != 1 {
		t.Errorf("expected 1 event, got %d", len(a.Events()))
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopSink); !ok {
		t.Error("expected NopSink for nil")
	}
	r := NewRecorder()
	if OrNop(r) != Sink(r) {
		t.Error("expected the given sink back")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
