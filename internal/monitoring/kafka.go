package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/tmirko/flight-price-tracker/internal/resilience"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alerts to a Kafka topic keyed by route.
type KafkaPublisher struct {
	writer messageWriter
	retry  resilience.RetryConfig
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, eris.New("monitoring: at least one kafka broker required")
	}
	if topic == "" {
		return nil, eris.New("monitoring: kafka topic required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(w), nil
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = 100 * time.Millisecond
	retry.MaxBackoff = 2 * time.Second
	retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	retry.OnRetry = resilience.RetryLogger("kafka", "publish")
	return &KafkaPublisher{writer: w, retry: retry}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(key),
			Value: payload,
			Time:  time.Now().UTC(),
		})
	})
	return eris.Wrap(err, "monitoring: kafka publish")
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
