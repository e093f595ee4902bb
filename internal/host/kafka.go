package host

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

const (
	EventKafkaHeaderKey    = "event"
	PlatformKafkaHeaderKey = "platform"
	DateSentHeaderKey      = "date_sent"

	eventDiscovery = "discovery"
	eventState     = "state"
	eventRemoval   = "removal"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher streams entity events as JSON. Messages are keyed by unique ID so
// that all events of one entity land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	logger *logrus.Logger
}

type kafkaEvent struct {
	Discovery Discovery           `json:"discovery"`
	State     *models.EntityState `json:"state,omitempty"`
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *logrus.Logger) *KafkaPublisher {
	logger.Info("Starting a new Kafka producer..")

	writerConfig := kafka.WriterConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		BatchSize: cfg.BatchSize,
	}
	if cfg.Balancer == "hash" {
		writerConfig.Balancer = &kafka.Hash{}
	}

	logger.Info("Producing messages to topic: ", cfg.Topic)

	return &KafkaPublisher{writer: kafka.NewWriter(writerConfig), logger: logger}
}

func (p *KafkaPublisher) PublishDiscovery(ctx context.Context, d Discovery) error {
	return p.write(ctx, eventDiscovery, kafkaEvent{Discovery: d})
}

func (p *KafkaPublisher) PublishState(ctx context.Context, d Discovery, state models.EntityState) error {
	return p.write(ctx, eventState, kafkaEvent{Discovery: d, State: &state})
}

func (p *KafkaPublisher) PublishRemoval(ctx context.Context, d Discovery) error {
	return p.write(ctx, eventRemoval, kafkaEvent{Discovery: d})
}

func (p *KafkaPublisher) write(ctx context.Context, event string, payload kafkaEvent) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Headers: []kafka.Header{
			{Key: EventKafkaHeaderKey, Value: []byte(event)},
			{Key: PlatformKafkaHeaderKey, Value: []byte(payload.Discovery.Platform)},
			{Key: DateSentHeaderKey, Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
		},
		Key:   []byte(payload.Discovery.UniqueID),
		Value: value,
	})
	if err != nil {
		messagesPublished.WithLabelValues("kafka", "failure").Inc()
		p.logger.WithFields(logrus.Fields{"error": err, "event": event}).Error("Error writing entity event to kafka")
		return err
	}
	messagesPublished.WithLabelValues("kafka", "success").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
