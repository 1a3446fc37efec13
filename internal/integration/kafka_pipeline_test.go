//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/flood-occurrence-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-occurrence-etl/internal/config"
	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
	"github.com/couchcryptid/flood-occurrence-etl/internal/observability"
	"github.com/couchcryptid/flood-occurrence-etl/internal/pipeline"
)

const testSeasonTopic = "test-flood-seasons"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("flood-etl-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     2,
		ReplicationFactor: 1,
	}))
}

type publishedMessage struct {
	Key     string
	Value   string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader, n int) []publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedMessage, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from season topic")
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, publishedMessage{Key: string(msg.Key), Value: string(msg.Value), Headers: headers})
	}
	return out
}

func feature(t *testing.T, date string) domain.Feature {
	t.Helper()
	f, err := domain.ParseFeature([]byte(fmt.Sprintf(
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[-43.2,-22.9]},"properties":{"data_inicio":%q}}`, date)))
	require.NoError(t, err)
	return f
}

// staticExtractor returns a fixed feature set.
type staticExtractor struct{ features []domain.Feature }

func (s staticExtractor) Extract(context.Context) ([]domain.Feature, error) { return s.features, nil }

// TestSeasonPublisher runs the seasons pipeline against a real broker and
// checks that every dated occurrence is published once, keyed by its season.
func TestSeasonPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSeasonTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSeasonTopic: testSeasonTopic,
		KafkaTimeout:     30 * time.Second,
	}

	features := []domain.Feature{
		feature(t, "2024-01-15"),
		feature(t, "2024-07-04"),
		feature(t, ""),
		feature(t, "2024-12-25"),
	}

	publisher := kafka.NewSeasonPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	seasons := pipeline.NewSeasons(
		staticExtractor{features: features},
		domain.NewSplitter([]string{"data_inicio"}, discardLogger()),
		discardLogger(),
		observability.NewMetricsForTesting(),
		publisher,
	)
	require.NoError(t, seasons.Run(ctx))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSeasonTopic,
		GroupID:     fmt.Sprintf("test-seasons-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	msgs := readPublished(ctx, t, consumer, 3)

	byKey := map[string]int{}
	for _, m := range msgs {
		byKey[m.Key]++
		assert.Equal(t, m.Key, m.Headers["season"])
		_, err := time.Parse(time.RFC3339, m.Headers["run_at"])
		assert.NoError(t, err, "run_at should be valid RFC3339")
		assert.Contains(t, m.Value, `"data_inicio"`)
	}
	assert.Equal(t, map[string]int{"summer": 2, "winter": 1}, byKey)

	// The blank-date record is never published.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no fourth message")
}
