/*
 * @module service/datasource/realtime
 * @description 实时位号缓冲，通过 MQTT 订阅接收测点数据并维护环形缓冲
 * @architecture 数据访问层 - 实时通道
 * @stateFlow MQTT 订阅 -> 报文解析 -> 按位号写入环形缓冲 -> 异常检测读取
 * @rules 报文为 JSON {tag, value, time}，time 缺省取接收时间；缓冲超限丢弃最旧点
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs anomaly.go, dal.go
 */

package datasource

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const defaultBufferCapacity = 2000

// tagMessage MQTT 报文结构
type tagMessage struct {
	Tag   string  `json:"tag"`
	Value float64 `json:"value"`
	Time  string  `json:"time"`
}

// RealtimeTagBuffer 实时位号环形缓冲
type RealtimeTagBuffer struct {
	mu       sync.RWMutex
	capacity int
	series   map[string][]TagPoint
	client   mqtt.Client
}

// NewRealtimeTagBuffer 创建实时缓冲，capacity 为每个位号保留的点数上限
func NewRealtimeTagBuffer(brokerURL, clientID string, capacity int) *RealtimeTagBuffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	buf := &RealtimeTagBuffer{
		capacity: capacity,
		series:   make(map[string][]TagPoint),
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT连接断开", "error", err)
	})
	buf.client = mqtt.NewClient(opts)
	return buf
}

// Start 连接代理并订阅位号主题
func (b *RealtimeTagBuffer) Start(topics ...string) error {
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("连接MQTT代理超时")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("连接MQTT代理失败: %w", err)
	}
	for _, topic := range topics {
		sub := b.client.Subscribe(topic, 1, b.onMessage)
		if !sub.WaitTimeout(10 * time.Second) || sub.Error() != nil {
			return fmt.Errorf("订阅主题 %s 失败: %v", topic, sub.Error())
		}
		slog.Info("已订阅实时位号主题", "topic", topic)
	}
	return nil
}

// Stop 断开 MQTT 连接
func (b *RealtimeTagBuffer) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

// onMessage 报文回调，解析后写入缓冲
func (b *RealtimeTagBuffer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var m tagMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		slog.Warn("实时报文解析失败", "topic", msg.Topic(), "error", err)
		return
	}
	if m.Tag == "" {
		return
	}
	ts := time.Now()
	if m.Time != "" {
		if parsed, err := time.Parse("2006-01-02 15:04:05", m.Time); err == nil {
			ts = parsed
		} else if parsed, err := time.Parse(time.RFC3339, m.Time); err == nil {
			ts = parsed
		}
	}
	b.append(m.Tag, TagPoint{Time: ts, Value: m.Value})
}

// append 写入环形缓冲，超出容量时截断最旧数据
func (b *RealtimeTagBuffer) append(tag string, p TagPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	points := append(b.series[tag], p)
	if len(points) > b.capacity {
		points = points[len(points)-b.capacity:]
	}
	b.series[tag] = points
}

// Recent 读取位号最近 limit 个点，按时间升序返回
func (b *RealtimeTagBuffer) Recent(tag string, limit int) []TagPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	points := b.series[tag]
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	out := make([]TagPoint, len(points))
	copy(out, points)
	return out
}

// Tags 返回当前缓冲中的全部位号
func (b *RealtimeTagBuffer) Tags() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tags := make([]string, 0, len(b.series))
	for tag := range b.series {
		tags = append(tags, tag)
	}
	return tags
}
