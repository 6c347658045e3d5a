package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ruslano69/eavsql/pkg/store"
)

// Kafka публикует события в topic
// Ключ сообщения - collection/oid: события одного объекта попадают в одну партицию
type Kafka struct {
	config Config
	writer *kafka.Writer
}

// NewKafka создает writer и проверяет доступность topic
func NewKafka(ctx context.Context, cfg Config) (*Kafka, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic name is required for Kafka")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required for Kafka")
	}

	k := &Kafka{
		config: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
		},
	}
	if err := k.Ping(ctx); err != nil {
		k.writer.Close()
		return nil, err
	}
	return k, nil
}

// Publish отправляет событие
func (k *Kafka) Publish(ctx context.Context, ev store.Event) error {
	msg, err := kafkaMessage(ev)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

func kafkaMessage(ev store.Event) (kafka.Message, error) {
	body, err := Encode(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.Collection + "/" + ev.OID),
		Value: body,
		Time:  ev.Time,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(ContentType)},
			{Key: "op", Value: []byte(ev.Op)},
		},
	}, nil
}

// Ping проверяет, что брокер отвечает и topic существует
func (k *Kafka) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial Kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(k.config.Topic); err != nil {
		return fmt.Errorf("failed to read topic partitions: %w", err)
	}
	return nil
}

// Stats возвращает статистику writer
func (k *Kafka) Stats() kafka.WriterStats {
	return k.writer.Stats()
}

func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

func (k *Kafka) Type() string { return TypeKafka }
