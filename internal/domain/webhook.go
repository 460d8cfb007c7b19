package domain

import "time"

// EventType Webhook 事件类型
type EventType string

const (
	EventRuleTriggered    EventType = "rule_triggered"     // 规则命中
	EventHighRiskDetected EventType = "high_risk_detected" // 高风险邮件
	EventEmailFlagged     EventType = "email_flagged"      // 邮件被标记复核
	EventEmailReported    EventType = "email_reported"     // 邮件被上报
	EventSystemAlert      EventType = "system_alert"       // 系统告警
)

// ValidEventType 判断事件类型是否属于合法集合
func ValidEventType(t string) bool {
	switch EventType(t) {
	case EventRuleTriggered, EventHighRiskDetected, EventEmailFlagged,
		EventEmailReported, EventSystemAlert:
		return true
	}
	return false
}

// Webhook 订阅方回调配置
type Webhook struct {
	ID             string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID        string   `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	Name           string   `json:"name" gorm:"type:varchar(100)"`
	URL            string   `json:"url" gorm:"type:varchar(500);not null"` // 必须是合法 HTTP(S) URL
	Events         []string `json:"events" gorm:"serializer:json;type:json"`
	Enabled        bool     `json:"enabled" gorm:"default:true"`
	Secret         string   `json:"secret,omitempty" gorm:"type:varchar(255)"`
	RetryCount     int      `json:"retryCount" gorm:"default:3"`      // 额外重试次数 0..10
	TimeoutSeconds int      `json:"timeoutSeconds" gorm:"default:10"` // 单次请求超时 5..60 秒

	// 投递计数，仅由分发器原子更新
	SuccessfulDeliveries int64      `json:"successfulDeliveries" gorm:"default:0"`
	FailedDeliveries     int64      `json:"failedDeliveries" gorm:"default:0"`
	LastDeliveryAt       *time.Time `json:"lastDeliveryAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubscribesTo 检查该 Webhook 是否订阅了指定事件
func (w *Webhook) SubscribesTo(t EventType) bool {
	for _, e := range w.Events {
		if e == string(t) {
			return true
		}
	}
	return false
}

// Event 待分发的事件
//
// 每个事件携带全局唯一 ID，随 payload 与 X-Webhook-ID 头一起投递，
// 订阅方据此对重试导致的重复投递去重。
type Event struct {
	ID        string                 `json:"id"`
	OwnerID   string                 `json:"-"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// DeliveryAttempt 单次 HTTP 投递尝试的账目记录
//
// 只追加，创建后不再修改。payload 本身不落库，只记 SHA-256 摘要。
type DeliveryAttempt struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WebhookID     string    `json:"webhookId" gorm:"type:varchar(36);index;not null"`
	EventID       string    `json:"eventId" gorm:"type:varchar(36);index"`
	EventType     EventType `json:"eventType" gorm:"type:varchar(32)"`
	PayloadDigest string    `json:"payloadDigest" gorm:"type:varchar(64)"` // hex(SHA-256(body))
	AttemptNumber int       `json:"attemptNumber"`                         // 1 为首次投递
	StatusCode    int       `json:"statusCode,omitempty"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty" gorm:"type:varchar(500)"`
	DurationMS    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

// WebhookRepository Webhook 仓储接口
type WebhookRepository interface {
	// CreateWebhook 创建 Webhook
	CreateWebhook(webhook *Webhook) error

	// GetWebhook 获取 Webhook
	GetWebhook(id string) (*Webhook, error)

	// ListWebhooks 列出用户的全部 Webhooks
	ListWebhooks(ownerID string) ([]Webhook, error)

	// ListWebhooksByEvent 列出用户已启用且订阅了指定事件的 Webhooks
	ListWebhooksByEvent(ownerID string, event EventType) ([]Webhook, error)

	// UpdateWebhook 更新 Webhook
	UpdateWebhook(webhook *Webhook) error

	// DeleteWebhook 删除 Webhook
	DeleteWebhook(id string) error

	// RecordDeliveryAttempt 追加一条投递尝试记录
	RecordDeliveryAttempt(attempt *DeliveryAttempt) error

	// ListDeliveryAttempts 按时间倒序返回最近的投递尝试记录
	ListDeliveryAttempts(webhookID string, limit int) ([]DeliveryAttempt, error)

	// MarkDeliverySuccess 原子递增成功计数并刷新最近投递时间
	MarkDeliverySuccess(webhookID string, at time.Time) error

	// MarkDeliveryFailure 原子递增失败计数
	MarkDeliveryFailure(webhookID string) error
}
