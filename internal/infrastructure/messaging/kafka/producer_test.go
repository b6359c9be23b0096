package kafka

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func newTestProducer(w WriterInterface) *Producer {
	return NewProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, logging.NewNopLogger())
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   TopicStructureUploaded,
		Key:     []byte("k"),
		Value:   []byte(`{"a":1}`),
		Headers: map[string]string{"h": "v"},
	})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	m := w.messages[0]
	assert.Equal(t, TopicStructureUploaded, m.Topic)
	assert.Equal(t, []byte("k"), m.Key)
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("v")}}, m.Headers)
	assert.False(t, m.Time.IsZero())

	st := p.Stats()
	assert.Equal(t, int64(1), st.MessagesSent)
	assert.Equal(t, int64(7), st.BytesSent)
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newTestProducer(&fakeWriter{})
	ctx := context.Background()

	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("x")}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), errors.ErrCodeValidation))

	big := []byte(strings.Repeat("x", (1<<20)+1))
	assert.ErrorContains(t, p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}), "exceeds limit")
}

func TestProducer_PublishFailure(t *testing.T) {
	p := newTestProducer(&fakeWriter{err: assert.AnError})
	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
	assert.Equal(t, int64(1), p.Stats().MessagesFailed)
}

func TestProducer_PublishEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	env, err := NewEventEnvelope(EventStructureAnalyzed, "biodockviz-worker", StructureAnalyzedPayload{
		StructureID:       "s-1",
		InteractionCounts: map[string]int{"hydrogen_bond": 2},
	})
	require.NoError(t, err)
	require.NoError(t, p.PublishEvent(context.Background(), TopicStructureAnalyzed, "s-1", env))

	require.Len(t, w.messages, 1)
	got, err := MessageToEventEnvelope(fromKafkaMessage(w.messages[0]))
	require.NoError(t, err)
	var payload StructureAnalyzedPayload
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, 2, payload.InteractionCounts["hydrogen_bond"])
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducerConfigFrom(t *testing.T) {
	cfg := ProducerConfigFrom(config.KafkaConfig{
		Brokers:       []string{"b:9092"},
		MaxRetries:    5,
		BatchSize:     10,
		BatchTimeout:  time.Second,
		SASLMechanism: "PLAIN",
		SASLUsername:  "u",
		SASLPassword:  "p",
	})
	assert.Equal(t, []string{"b:9092"}, cfg.Brokers)
	assert.Equal(t, "all", cfg.Acks)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "PLAIN", cfg.Security.SASLMechanism)
	assert.NoError(t, ValidateProducerConfig(cfg))
}

func TestValidateProducerConfig(t *testing.T) {
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, Security: SecurityConfig{SASLMechanism: "PLAIN"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, Security: SecurityConfig{SASLMechanism: "GSSAPI"}}))
}

func TestNewProducer_BuildsWriter(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Acks: "all", CompressionCodec: "snappy"}, logging.NewNopLogger())
	require.NoError(t, err)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, kafka.Snappy, w.Compression)
	assert.Equal(t, 4, w.MaxAttempts)
}

func TestSecurityConfig(t *testing.T) {
	tlsCfg, err := SecurityConfig{}.tlsConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)

	tlsCfg, err = SecurityConfig{TLSEnabled: true}.tlsConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsCfg)

	_, err = SecurityConfig{TLSEnabled: true, TLSCAFile: "/nonexistent/ca.pem"}.tlsConfig()
	assert.Error(t, err)

	mech, err := SecurityConfig{}.mechanism()
	require.NoError(t, err)
	assert.Nil(t, mech)

	mech, err = SecurityConfig{SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-512", mech.Name())
}
