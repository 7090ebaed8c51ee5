package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sample() Intent {
	sl := 63000.0
	return Intent{
		TradeID: "01J0", Asset: "BTCUSDT", Action: "AUTO_BUY", Side: "long",
		Quantity: 0.003, Price: 64000, Fraction: 0.0192, StopLoss: &sl,
		Mode: "AUTOPILOT", Source: "AI",
		Time: time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublish(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	k := &Kafka{w: fw, topic: "intents"}

	require.NoError(t, k.Publish(context.Background(), sample()))
	require.Len(t, fw.msgs, 1)

	m := fw.msgs[0]
	assert.Equal(t, []byte("BTCUSDT"), m.Key)
	assert.Equal(t, "mode", m.Headers[0].Key)

	var got Intent
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, "AUTO_BUY", got.Action)
	require.NotNil(t, got.StopLoss)
	assert.Equal(t, 63000.0, *got.StopLoss)
	assert.Nil(t, got.TakeProfit)

	require.NoError(t, k.Close())
	assert.True(t, fw.closed)
}

func TestKafkaPublishError(t *testing.T) {
	t.Parallel()

	k := &Kafka{w: &fakeWriter{err: errors.New("leader not available")}, topic: "intents"}
	err := k.Publish(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewKafka(KafkaOptions{Topic: "x"})
	assert.Error(t, err)

	_, err = NewKafka(KafkaOptions{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	k, err := NewKafka(KafkaOptions{Brokers: []string{"localhost:9092"}, Topic: "x"})
	require.NoError(t, err)
	assert.NoError(t, k.Close())
}

func TestLogPublish(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf))
	require.NoError(t, l.Publish(context.Background(), sample()))

	out := buf.String()
	assert.Contains(t, out, `"component":"intents"`)
	assert.Contains(t, out, `"asset":"BTCUSDT"`)
	assert.Contains(t, out, `"message":"trade intent"`)
	assert.NoError(t, l.Close())
}
