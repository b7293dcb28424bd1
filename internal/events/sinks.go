package events

import (
	"context"
	"encoding/json"
	"fmt"

	"creator-auth/internal/client"
	"creator-auth/internal/model"
)

// KafkaSink publishes events as JSON keyed by email hash.
type KafkaSink struct {
	producer client.MessageProducer
	topic    string
}

func NewKafkaSink(producer client.MessageProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, event *model.AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	headers := map[string]string{"event-type": string(event.Type)}
	return s.producer.ProduceMessage(ctx, s.topic, []byte(event.EmailHash), payload, headers)
}

type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, document interface{}) error
}

// ElasticsearchSink indexes each event under its ID.
type ElasticsearchSink struct {
	indexer DocumentIndexer
	index   string
}

func NewElasticsearchSink(indexer DocumentIndexer, index string) *ElasticsearchSink {
	return &ElasticsearchSink{indexer: indexer, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Write(ctx context.Context, event *model.AuthEvent) error {
	return s.indexer.IndexDocument(ctx, s.index, event.ID, event)
}

type BatchInserter interface {
	BatchInsert(ctx context.Context, query string, rows [][]interface{}) error
}

const insertAuthEvent = `INSERT INTO auth_events (id, type, email_hash, user_id, reason, bucket, occurred_at)`

// ClickHouseSink appends events to the auth_events table.
type ClickHouseSink struct {
	inserter BatchInserter
}

func NewClickHouseSink(inserter BatchInserter) *ClickHouseSink {
	return &ClickHouseSink{inserter: inserter}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, event *model.AuthEvent) error {
	row := []interface{}{
		event.ID,
		string(event.Type),
		event.EmailHash,
		event.UserID,
		event.Reason,
		uint16(event.Bucket),
		event.OccurredAt,
	}
	return s.inserter.BatchInsert(ctx, insertAuthEvent, [][]interface{}{row})
}
