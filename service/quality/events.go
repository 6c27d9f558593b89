/*
 * @module service/quality/events
 * @description 质量检测事件发布，检测完成/失败时向 Kafka 主题推送事件
 * @architecture 业务逻辑层 - 事件通知
 * @stateFlow 检测结束 -> 事件序列化 -> Kafka 写入
 * @rules 事件发布失败只记录日志，不影响检测主流程
 * @dependencies github.com/segmentio/kafka-go
 * @refs service.go
 */

package quality

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultQualityTopic = "quality-check-events"

// QualityEvent 质量检测事件
type QualityEvent struct {
	ResultID  string  `json:"result_id"`
	LibraryID string  `json:"library_id,omitempty"`
	DataSource string `json:"data_source"`
	TableName string  `json:"table_name"`
	CheckType string  `json:"check_type"`
	PassRate  float64 `json:"pass_rate"`
	Status    string  `json:"status"` // completed, failed
	Timestamp string  `json:"timestamp"`
}

// EventPublisher Kafka 事件发布器
type EventPublisher struct {
	writer *kafka.Writer
}

// NewEventPublisherFromEnv 按环境变量创建发布器
// KAFKA_BROKERS 为空时返回 nil 表示禁用事件发布
func NewEventPublisherFromEnv() *EventPublisher {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}
	topic := os.Getenv("KAFKA_QUALITY_TOPIC")
	if topic == "" {
		topic = defaultQualityTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &EventPublisher{writer: writer}
}

// Publish 发布事件，失败只记录日志
func (p *EventPublisher) Publish(ctx context.Context, event QualityEvent) {
	if p == nil {
		return
	}
	event.Timestamp = time.Now().Format(time.RFC3339)
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("质量事件序列化失败", "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ResultID),
		Value: payload,
	})
	if err != nil {
		slog.Warn("质量事件发布失败", "result_id", event.ResultID, "error", err)
	}
}

// Close 关闭发布器
func (p *EventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
