package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaSender 把通知作为事件写入 Kafka，由下游（推送、站内信）消费
type KafkaSender struct {
	writer *kafka.Writer
}

func NewKafkaSender(cfg KafkaConfig) *KafkaSender {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaSender{writer: w}
}

type kafkaEvent struct {
	Template  string            `json:"template"`
	UserID    uint64            `json:"user_id"`
	Context   map[string]string `json:"context"`
	EventTime string            `json:"event_time"`
}

func (s *KafkaSender) Send(ctx context.Context, n Notification) error {
	value, err := json.Marshal(kafkaEvent{
		Template:  n.Template,
		UserID:    n.UserID,
		Context:   n.Context,
		EventTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	// 同一用户的通知落在同一分区，保持顺序
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(n.UserID, 10)),
		Value: value,
	})
}

func (s *KafkaSender) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
