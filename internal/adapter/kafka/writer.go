package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flood-occurrence-etl/internal/config"
	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// ErrEmptyFeature reports a feature without raw bytes to publish.
var ErrEmptyFeature = errors.New("feature has no raw JSON")

// messageWriter is the subset of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SeasonPublisher produces every partitioned occurrence to a Kafka topic,
// keyed by season so one season always lands on the same partition.
// It implements pipeline.SeasonLoader.
type SeasonPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewSeasonPublisher creates a producer for the configured season topic.
func NewSeasonPublisher(cfg *config.Config, logger *slog.Logger) *SeasonPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSeasonTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &SeasonPublisher{writer: w, timeout: cfg.KafkaTimeout, logger: logger}
}

// Load publishes the partitions season by season in a single
// WriteMessages call per season.
func (p *SeasonPublisher) Load(ctx context.Context, parts domain.SeasonPartitions) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	runAt := domain.Now()
	for _, s := range domain.Seasons {
		features := parts.Get(s)
		if len(features) == 0 {
			continue
		}
		msgs := make([]kafkago.Message, len(features))
		for i, f := range features {
			msg, err := serializeToMessage(s, f, runAt)
			if err != nil {
				return fmt.Errorf("%s feature %d: %w", s, i, err)
			}
			msgs[i] = msg
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish %s: %w", s, err)
		}
		p.logger.Info("season published", "season", s.String(), "messages", len(msgs))
	}
	return nil
}

func (p *SeasonPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage wraps a feature's original bytes in a Kafka message.
func serializeToMessage(s domain.Season, f domain.Feature, runAt time.Time) (kafkago.Message, error) {
	if len(f.Raw) == 0 {
		return kafkago.Message{}, ErrEmptyFeature
	}
	return kafkago.Message{
		Key:   []byte(s.String()),
		Value: f.Raw,
		Headers: []kafkago.Header{
			{Key: "season", Value: []byte(s.String())},
			{Key: "run_at", Value: []byte(runAt.Format(time.RFC3339))},
		},
	}, nil
}
