package memory

import (
	"sync"

	"phishguard/backend/internal/domain"
)

// maxAttemptsPerWebhook 单个 Webhook 在内存中保留的投递记录上限，超出后丢弃最旧的。
const maxAttemptsPerWebhook = 1000

// Store 使用内存保存邮件、规则与 Webhook 数据，主要用于开发验证与测试。
type Store struct {
	mu sync.RWMutex

	emails        map[string]*domain.EmailRecord           // emailID -> record
	emailsByOwner map[string]map[string]*domain.EmailRecord // ownerID -> emailID -> record

	rules        map[string]*domain.Rule            // ruleID -> rule
	rulesByOwner map[string]map[string]*domain.Rule // ownerID -> ruleID -> rule

	webhooks        map[string]*domain.Webhook            // webhookID -> webhook
	webhooksByOwner map[string]map[string]*domain.Webhook // ownerID -> webhookID -> webhook
	attempts        map[string][]*domain.DeliveryAttempt  // webhookID -> 投递记录（按写入顺序）

	blocked map[string]map[string]*domain.BlockedSender // ownerID -> address -> entry
	trusted map[string]map[string]*domain.TrustedDomain // ownerID -> domain -> entry
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		emails:          make(map[string]*domain.EmailRecord),
		emailsByOwner:   make(map[string]map[string]*domain.EmailRecord),
		rules:           make(map[string]*domain.Rule),
		rulesByOwner:    make(map[string]map[string]*domain.Rule),
		webhooks:        make(map[string]*domain.Webhook),
		webhooksByOwner: make(map[string]map[string]*domain.Webhook),
		attempts:        make(map[string][]*domain.DeliveryAttempt),
		blocked:         make(map[string]map[string]*domain.BlockedSender),
		trusted:         make(map[string]map[string]*domain.TrustedDomain),
	}
}

// Close 关闭存储，内存实现无需释放资源。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查，内存实现始终可用。
func (s *Store) Health() error {
	return nil
}
