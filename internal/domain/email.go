package domain

import "time"

// EmailStatus 邮件处理状态
type EmailStatus string

const (
	EmailStatusPending       EmailStatus = "pending"        // 待人工处理
	EmailStatusAnalyzed      EmailStatus = "analyzed"       // 已完成分析
	EmailStatusReported      EmailStatus = "reported"       // 已上报
	EmailStatusFalsePositive EmailStatus = "false_positive" // 误报
)

// ValidEmailStatus 判断状态值是否属于合法集合
func ValidEmailStatus(s string) bool {
	switch EmailStatus(s) {
	case EmailStatusPending, EmailStatusAnalyzed, EmailStatusReported, EmailStatusFalsePositive:
		return true
	}
	return false
}

// EmailRecord 上游分析管线产出的邮件记录
//
// 规则引擎只读取该记录，所有修改都通过动作的副作用完成。
type EmailRecord struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID    string      `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	FromAddr   string      `json:"fromAddr" gorm:"type:varchar(320)"`
	Subject    string      `json:"subject" gorm:"type:varchar(998)"`
	Domain     string      `json:"domain" gorm:"type:varchar(253);index"` // 发件人域名
	Score      float64     `json:"score"`                                 // 钓鱼风险评分 0..100
	URLsCount  int         `json:"urlsCount"`                             // 正文中的链接数量
	Status     EmailStatus `json:"status" gorm:"type:varchar(20);index"`
	Flagged    bool        `json:"flagged"`                              // 人工复核标记
	Labels     []string    `json:"labels" gorm:"serializer:json;type:json"`
	ReceivedAt time.Time   `json:"receivedAt"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// HasLabel 检查邮件是否已带有指定标签
func (e *EmailRecord) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// BlockedSender 用户的发件人黑名单条目
type BlockedSender struct {
	OwnerID   string    `json:"ownerId" gorm:"primaryKey;type:varchar(36)"`
	Address   string    `json:"address" gorm:"primaryKey;type:varchar(320)"`
	CreatedAt time.Time `json:"createdAt"`
}

// TrustedDomain 用户的可信域名条目
type TrustedDomain struct {
	OwnerID   string    `json:"ownerId" gorm:"primaryKey;type:varchar(36)"`
	Domain    string    `json:"domain" gorm:"primaryKey;type:varchar(253)"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmailRepository 邮件记录仓储接口
type EmailRepository interface {
	// SaveEmail 保存邮件记录
	SaveEmail(email *EmailRecord) error

	// GetEmail 获取用户名下的单条邮件记录
	GetEmail(ownerID, id string) (*EmailRecord, error)

	// ListEmails 列出用户的全部邮件记录
	ListEmails(ownerID string) ([]EmailRecord, error)

	// UpdateEmailStatus 更新邮件状态
	UpdateEmailStatus(ownerID, id string, status EmailStatus) error

	// SetEmailFlagged 设置人工复核标记
	SetEmailFlagged(ownerID, id string, flagged bool) error

	// AddEmailLabel 为邮件追加标签（去重）
	AddEmailLabel(ownerID, id, label string) error

	// DeleteEmail 删除邮件记录
	DeleteEmail(ownerID, id string) error
}

// ListRepository 发件人黑名单与可信域名仓储接口
//
// 追加操作都是幂等的：重复追加同一条目不报错、不产生重复行。
type ListRepository interface {
	BlockSender(ownerID, address string) error
	TrustDomain(ownerID, domain string) error
	ListBlockedSenders(ownerID string) ([]BlockedSender, error)
	ListTrustedDomains(ownerID string) ([]TrustedDomain, error)
}
