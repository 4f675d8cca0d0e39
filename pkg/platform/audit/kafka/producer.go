// Package kafka fans audit events out to a Kafka topic for downstream
// compliance consumers. The database store remains the transactional record;
// this sink is at-least-once and runs off the request path.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "veridata/pkg/platform/audit"
)

const DefaultTopic = "veridata.audit"

// Producer implements audit.Store over a Kafka topic. ListByEntity is not
// supported; querying happens against the database store.
type Producer struct {
	client *kgo.Client
	topic  string
}

type payload struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id"`
	OldValue  string `json:"old_value,omitempty"`
	NewValue  string `json:"new_value,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Action    string `json:"action"`
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Producer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", resp.Err)
	}

	return &Producer{client: client, topic: topic}, nil
}

// Append publishes one audit event, keyed by entity ID so per-record ordering
// is preserved within a partition.
func (p *Producer) Append(ctx context.Context, event audit.Event) error {
	body := payload{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Entity:    event.Entity,
		EntityID:  event.EntityID,
		OldValue:  event.OldValue,
		NewValue:  event.NewValue,
		Reason:    event.Reason,
		Action:    event.Action,
	}
	if !event.ActorID.IsNil() {
		body.ActorID = event.ActorID.String()
	}

	value, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Entity + ":" + event.EntityID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByEntity is unsupported on the Kafka sink.
func (p *Producer) ListByEntity(context.Context, string, string) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support listing")
}

func (p *Producer) Close() {
	p.client.Close()
}
