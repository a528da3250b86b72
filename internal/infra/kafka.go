package infra

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/riverfelt/platform/internal/domain"
	"github.com/riverfelt/platform/internal/guard"
)

// KafkaProducer wraps a kafka-go writer for publishing messages.
type KafkaProducer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewKafkaProducer creates a Kafka producer. If brokers is empty or disabled, writes are no-ops.
func NewKafkaProducer(brokers string, enabled bool, logger *slog.Logger) *KafkaProducer {
	if !enabled || brokers == "" {
		logger.Info("kafka producer disabled")
		return &KafkaProducer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka producer initialized", "brokers", brokers)
	return &KafkaProducer{writer: w, logger: logger, enabled: true}
}

// Publish sends a message to the given topic. No-op if disabled.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if !p.enabled {
		return nil
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

// Close shuts down the Kafka writer.
func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// EntrySink publishes committed journal entries to Kafka, best effort. A
// failed publish never fails the wallet operation; failure logs are gated by
// a token bucket so a broker outage cannot flood the log stream.
type EntrySink struct {
	producer *KafkaProducer
	logger   *slog.Logger
	errGate  *guard.RateLimiter
}

// NewEntrySink wires a producer to the engine's event hook.
func NewEntrySink(producer *KafkaProducer, errRate float64, errBurst int, logger *slog.Logger) *EntrySink {
	return &EntrySink{
		producer: producer,
		logger:   logger,
		errGate:  guard.NewRateLimiter(errRate, errBurst),
	}
}

// EntryPosted publishes the entry asynchronously. The commit already
// happened; the caller must not wait on the broker.
func (s *EntrySink) EntryPosted(ctx context.Context, entry *domain.JournalEntry) {
	event := domain.NewEntryPostedEvent(entry)
	key, value, err := event.Marshal()
	if err != nil {
		s.logger.Error("marshal entry event", "error", err, "entry_id", entry.ID)
		return
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.producer.Publish(pubCtx, domain.EntryPostedTopic, key, value); err != nil {
			if s.errGate.Allow("kafka_publish") {
				s.logger.Error("publish entry event",
					"error", err,
					"entry_id", entry.ID,
					"player_id", entry.PlayerID,
				)
			}
		}
	}()
}
