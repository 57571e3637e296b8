package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/logging"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func stored() models.StoredEvent {
	return models.StoredEvent{
		Key:   "event:1:abc",
		Event: models.Event{Account: "A", Location: "L1", Source: "agent", Uptime: 99},
	}
}

func TestMessageKeyAndBody(t *testing.T) {
	msg, err := Message(stored())
	require.NoError(t, err)
	assert.Equal(t, "A:L1", string(msg.Key))

	var back models.StoredEvent
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, stored(), back)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "agent", string(msg.Headers[0].Value))
}

func TestKafkaPublish(t *testing.T) {
	w := &captureWriter{}
	k := &Kafka{w: w, log: logging.Discard()}
	require.NoError(t, k.Publish(context.Background(), stored()))
	assert.Len(t, w.msgs, 1)

	w.err = errors.New("broker down")
	assert.Error(t, k.Publish(context.Background(), stored()))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), stored()))
	assert.NoError(t, p.Close())
}
