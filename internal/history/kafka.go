package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// DefaultTopic receives one message per area per cycle.
const DefaultTopic = "floodrisk.assessments"

// KafkaSink publishes assessment records to a Kafka topic, keyed by area ID.
type KafkaSink struct {
	writer *kafkago.Writer
}

// NewKafkaSink creates a producer for topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Name() string { return "kafka" }

// Emit writes every area record of res in a single WriteMessages call.
func (k *KafkaSink) Emit(ctx context.Context, res *models.Result) error {
	records := Records(res)
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := recordMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func recordMessage(r Record) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.AreaID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "level", Value: []byte(r.Level)},
			{Key: "provenance", Value: []byte(r.Provenance)},
			{Key: "assessed_at", Value: []byte(r.AssessedAt.Format(time.RFC3339))},
		},
	}, nil
}
