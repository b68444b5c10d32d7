package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives reconciliation notifications.
const DefaultTopic = "railmeal.reconciliation"

// messageWriter is the part of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes entries keyed by idempotency key, so all updates
// for one checkout land on the same partition.
type KafkaNotifier struct {
	w messageWriter
}

var _ Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier returns a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaNotifier{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal entry")
	}
	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(e.Status)},
		},
	})
	return errors.Wrap(err, "kafka write")
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
