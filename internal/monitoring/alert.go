package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Level     AlertLevel `json:"level"`
	Component string     `json:"component"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertRule 告警规则
type AlertRule struct {
	ID            string
	Name          string
	Condition     func() bool
	Level         AlertLevel
	Component     string
	Message       string
	Cooldown      time.Duration
	lastTriggered time.Time
}

// EventSink 接收 system_alert 事件的队列
type EventSink interface {
	Enqueue(event domain.Event) bool
}

// AlertManager 告警管理器
//
// 周期性检查告警规则，触发的告警以 system_alert 事件送入投递队列，
// 由订阅该事件的运维 Webhook 接收。ownerID 为空时告警只进日志。
type AlertManager struct {
	rules   []AlertRule
	sink    EventSink
	ownerID string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewAlertManager 创建告警管理器
func NewAlertManager(sink EventSink, ownerID string, logger *zap.Logger) *AlertManager {
	return &AlertManager{
		sink:    sink,
		ownerID: ownerID,
		logger:  logger,
	}
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// CheckRules 检查告警规则，触发满足条件且已过冷却期的告警。
func (am *AlertManager) CheckRules() {
	am.mu.Lock()
	defer am.mu.Unlock()

	for i := range am.rules {
		rule := &am.rules[i]
		if time.Since(rule.lastTriggered) < rule.Cooldown {
			continue
		}
		if !rule.Condition() {
			continue
		}

		rule.lastTriggered = time.Now()
		am.trigger(rule)
	}
}

// trigger 触发单条告警。
func (am *AlertManager) trigger(rule *AlertRule) {
	am.logger.Warn("触发系统告警",
		zap.String("ruleId", rule.ID),
		zap.String("level", string(rule.Level)),
		zap.String("component", rule.Component),
		zap.String("message", rule.Message))

	if am.ownerID == "" || am.sink == nil {
		return
	}

	event := domain.Event{
		ID:      uuid.NewString(),
		OwnerID: am.ownerID,
		Type:    domain.EventSystemAlert,
		Data: map[string]interface{}{
			"alert_id":  rule.ID,
			"title":     rule.Name,
			"message":   rule.Message,
			"level":     string(rule.Level),
			"component": rule.Component,
		},
		Timestamp: time.Now(),
	}
	if !am.sink.Enqueue(event) {
		am.logger.Warn("告警事件入队失败", zap.String("ruleId", rule.ID))
	}
}

// StartMonitoring 启动周期性规则检查，阻塞直到上下文结束。
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules()
		}
	}
}

// HighMemoryUsageRule 高内存使用告警规则
func HighMemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func() bool {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.Alloc)/1024/1024 > thresholdMB
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Message:   fmt.Sprintf("memory usage exceeds %.0f MB", thresholdMB),
		Cooldown:  5 * time.Minute,
	}
}

// QueueSaturationRule 事件队列饱和告警规则
func QueueSaturationRule(depth func() int, threshold int) AlertRule {
	return AlertRule{
		ID:   "event_queue_saturation",
		Name: "Event Queue Saturation",
		Condition: func() bool {
			return depth() >= threshold
		},
		Level:     AlertLevelCritical,
		Component: "dispatcher",
		Message:   fmt.Sprintf("event queue depth reached %d", threshold),
		Cooldown:  time.Minute,
	}
}
