// Package events publishes recommendation runs to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/HiNala/stock-agents/internal/domain"
	"github.com/HiNala/stock-agents/internal/observability"
)

// Event types
const (
	EventRecommendation = "RECOMMENDATION"
	EventRunCompleted   = "RUN_COMPLETED"
)

// Publisher delivers recommendation runs to downstream consumers.
type Publisher interface {
	PublishRun(ctx context.Context, run *domain.RecommendationRun) error
	Close() error
}

// RecommendationEvent is the payload keyed by symbol.
type RecommendationEvent struct {
	EventType      string                `json:"event_type"`
	RunID          string                `json:"run_id"`
	Symbol         string                `json:"symbol"`
	Rank           int                   `json:"rank"` // 1-based
	Recommendation domain.Recommendation `json:"recommendation"`
	Timestamp      time.Time             `json:"timestamp"`
}

// RunSummaryEvent is the payload keyed by run ID.
type RunSummaryEvent struct {
	EventType     string               `json:"event_type"`
	RunID         string               `json:"run_id"`
	RiskTolerance domain.RiskTolerance `json:"risk_tolerance"`
	TimeHorizon   domain.TimeHorizon   `json:"time_horizon"`
	Symbols       []string             `json:"symbols"` // ranked
	PortfolioRisk domain.PortfolioRisk `json:"portfolio_risk"`
	Evaluated     int                  `json:"evaluated"`
	Skipped       int                  `json:"skipped"`
	Timestamp     time.Time            `json:"timestamp"`
}

// BuildMessages renders a run as one message per recommendation, in rank
// order, followed by the run summary.
func BuildMessages(run *domain.RecommendationRun) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(run.Recommendations)+1)
	symbols := make([]string, 0, len(run.Recommendations))

	for i, rec := range run.Recommendations {
		data, err := json.Marshal(RecommendationEvent{
			EventType:      EventRecommendation,
			RunID:          run.RunID,
			Symbol:         rec.Symbol,
			Rank:           i + 1,
			Recommendation: rec,
			Timestamp:      run.Timestamp,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recommendation %s: %w", rec.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(rec.Symbol), Value: data})
		symbols = append(symbols, rec.Symbol)
	}

	data, err := json.Marshal(RunSummaryEvent{
		EventType:     EventRunCompleted,
		RunID:         run.RunID,
		RiskTolerance: run.RiskTolerance,
		TimeHorizon:   run.TimeHorizon,
		Symbols:       symbols,
		PortfolioRisk: run.PortfolioRisk,
		Evaluated:     run.Evaluated,
		Skipped:       len(run.Skipped),
		Timestamp:     run.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run summary: %w", err)
	}
	msgs = append(msgs, kafka.Message{Key: []byte(run.RunID), Value: data})
	return msgs, nil
}

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes runs to one topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// PublishRun implements Publisher. All messages of a run go in one write.
func (p *KafkaPublisher) PublishRun(ctx context.Context, run *domain.RecommendationRun) (err error) {
	defer func() { observability.RecordPublish(err) }()

	msgs, err := BuildMessages(run)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

// Close closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards runs.
type NopPublisher struct{}

// PublishRun implements Publisher.
func (NopPublisher) PublishRun(context.Context, *domain.RecommendationRun) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
