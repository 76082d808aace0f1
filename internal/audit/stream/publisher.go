// Package stream feeds the reporting subsystem: a worker tails the audit
// trail past a persisted cursor and publishes each entry to Kafka. It sits
// entirely outside the engine's transactional path; if the stream lags or
// fails, record keeping is unaffected.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"citepay/internal/audit"
	"citepay/internal/platform/config"
)

// Publisher delivers a batch of audit entries to the reporting feed.
// Delivery must be all-or-nothing from the worker's point of view: on error
// the worker keeps its cursor and retries the whole batch, so consumers
// must tolerate redelivery.
type Publisher interface {
	Publish(ctx context.Context, entries []*audit.Entry) error
	Close()
}

// KafkaPublisher publishes audit entries to a Kafka topic, keyed by entity
// ID so one entity's transitions stay in partition order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, cfg config.KafkaConfig) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, entries []*audit.Entry) error {
	records := make([]*kgo.Record, 0, len(entries))
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal audit entry %d: %w", entry.Seq, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(entry.EntityID.String()),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "entity_type", Value: []byte(entry.EntityType)},
				{Key: "seq", Value: []byte(strconv.FormatInt(entry.Seq, 10))},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
