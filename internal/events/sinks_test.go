package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-auth/internal/model"
)

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
}

func (f *fakeProducer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.topic, f.key, f.value = topic, key, value
	return nil
}

type fakeIndexer struct {
	index, id string
	doc       interface{}
}

func (f *fakeIndexer) IndexDocument(ctx context.Context, index, id string, document interface{}) error {
	f.index, f.id, f.doc = index, id, document
	return nil
}

type fakeInserter struct {
	query string
	rows  [][]interface{}
}

func (f *fakeInserter) BatchInsert(ctx context.Context, query string, rows [][]interface{}) error {
	f.query, f.rows = query, rows
	return nil
}

func sampleEvent() *model.AuthEvent {
	return &model.AuthEvent{
		ID:         "evt-1",
		Type:       model.EventOTPVerified,
		EmailHash:  "hash",
		UserID:     "user-1",
		Bucket:     7,
		OccurredAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaSink(t *testing.T) {
	producer := &fakeProducer{}
	require.NoError(t, NewKafkaSink(producer, "auth.events").Write(context.Background(), sampleEvent()))

	assert.Equal(t, "auth.events", producer.topic)
	assert.Equal(t, "hash", string(producer.key))

	var decoded model.AuthEvent
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, model.EventOTPVerified, decoded.Type)
	assert.Equal(t, "user-1", decoded.UserID)
}

func TestElasticsearchSinkUsesEventID(t *testing.T) {
	indexer := &fakeIndexer{}
	require.NoError(t, NewElasticsearchSink(indexer, "auth-events").Write(context.Background(), sampleEvent()))

	assert.Equal(t, "auth-events", indexer.index)
	assert.Equal(t, "evt-1", indexer.id)
}

func TestClickHouseSinkRowOrder(t *testing.T) {
	inserter := &fakeInserter{}
	require.NoError(t, NewClickHouseSink(inserter).Write(context.Background(), sampleEvent()))

	require.Len(t, inserter.rows, 1)
	row := inserter.rows[0]
	assert.Equal(t, "evt-1", row[0])
	assert.Equal(t, "otp.verified", row[1])
	assert.Equal(t, uint16(7), row[5])
	assert.Contains(t, inserter.query, "auth_events")
}
