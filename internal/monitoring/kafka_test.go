package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	failures int
	calls    int
	msgs     []kafka.Message
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("leader not available")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func fastPublisher(w messageWriter) *KafkaPublisher {
	p := newKafkaPublisher(w)
	p.retry.InitialBackoff = time.Millisecond
	p.retry.MaxBackoff = 2 * time.Millisecond
	return p
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := fastPublisher(w)

	require.NoError(t, p.Publish(context.Background(), "LHR-JFK", []byte(`{"type":"new_low"}`)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "LHR-JFK", string(w.msgs[0].Key))
	assert.Equal(t, `{"type":"new_low"}`, string(w.msgs[0].Value))
	assert.False(t, w.msgs[0].Time.IsZero())
}

func TestKafkaPublisher_RetriesThenSucceeds(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := fastPublisher(w)

	require.NoError(t, p.Publish(context.Background(), "k", []byte("v")))
	assert.Equal(t, 3, w.calls)
}

func TestKafkaPublisher_GivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := fastPublisher(w)

	err := p.Publish(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka publish")
	assert.Equal(t, 3, w.calls)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, fastPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "alerts")
	require.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "alerts")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
