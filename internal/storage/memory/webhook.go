package memory

import (
	"sort"
	"time"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// CreateWebhook 创建 Webhook。
func (s *Store) CreateWebhook(webhook *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneWebhook(webhook)
	s.webhooks[webhook.ID] = clone
	if s.webhooksByOwner[webhook.OwnerID] == nil {
		s.webhooksByOwner[webhook.OwnerID] = make(map[string]*domain.Webhook)
	}
	s.webhooksByOwner[webhook.OwnerID][webhook.ID] = clone
	return nil
}

// GetWebhook 根据 ID 获取 Webhook。
func (s *Store) GetWebhook(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhook, ok := s.webhooks[id]
	if !ok {
		return nil, storage.ErrWebhookNotFound
	}
	return cloneWebhook(webhook), nil
}

// ListWebhooks 列出用户的全部 Webhooks。
func (s *Store) ListWebhooks(ownerID string) ([]domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhooks := make([]domain.Webhook, 0, len(s.webhooksByOwner[ownerID]))
	for _, webhook := range s.webhooksByOwner[ownerID] {
		webhooks = append(webhooks, *cloneWebhook(webhook))
	}
	sortWebhooks(webhooks)
	return webhooks, nil
}

// ListWebhooksByEvent 列出用户已启用且订阅了指定事件的 Webhooks。
func (s *Store) ListWebhooksByEvent(ownerID string, event domain.EventType) ([]domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhooks := make([]domain.Webhook, 0)
	for _, webhook := range s.webhooksByOwner[ownerID] {
		if webhook.Enabled && webhook.SubscribesTo(event) {
			webhooks = append(webhooks, *cloneWebhook(webhook))
		}
	}
	sortWebhooks(webhooks)
	return webhooks, nil
}

// UpdateWebhook 更新 Webhook，保留投递计数与创建时间。
func (s *Store) UpdateWebhook(webhook *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.webhooks[webhook.ID]
	if !ok {
		return storage.ErrWebhookNotFound
	}

	clone := cloneWebhook(webhook)
	clone.OwnerID = existing.OwnerID
	clone.SuccessfulDeliveries = existing.SuccessfulDeliveries
	clone.FailedDeliveries = existing.FailedDeliveries
	clone.LastDeliveryAt = existing.LastDeliveryAt
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	s.webhooks[webhook.ID] = clone
	s.webhooksByOwner[existing.OwnerID][webhook.ID] = clone

	*webhook = *cloneWebhook(clone)
	return nil
}

// DeleteWebhook 删除 Webhook 及其投递记录。
func (s *Store) DeleteWebhook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	webhook, ok := s.webhooks[id]
	if !ok {
		return storage.ErrWebhookNotFound
	}
	delete(s.webhooks, id)
	delete(s.webhooksByOwner[webhook.OwnerID], id)
	delete(s.attempts, id)
	return nil
}

// RecordDeliveryAttempt 追加一条投递记录，超过上限时丢弃最旧的。
func (s *Store) RecordDeliveryAttempt(attempt *domain.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *attempt
	records := append(s.attempts[attempt.WebhookID], &clone)
	if len(records) > maxAttemptsPerWebhook {
		records = records[len(records)-maxAttemptsPerWebhook:]
	}
	s.attempts[attempt.WebhookID] = records
	return nil
}

// ListDeliveryAttempts 按时间倒序返回最近的投递记录。
func (s *Store) ListDeliveryAttempts(webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.attempts[webhookID]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	out := make([]domain.DeliveryAttempt, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *records[i])
	}
	return out, nil
}

// MarkDeliverySuccess 递增成功计数并刷新最近投递时间。
func (s *Store) MarkDeliverySuccess(webhookID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	webhook, ok := s.webhooks[webhookID]
	if !ok {
		return storage.ErrWebhookNotFound
	}
	webhook.SuccessfulDeliveries++
	webhook.LastDeliveryAt = &at
	return nil
}

// MarkDeliveryFailure 递增失败计数。
func (s *Store) MarkDeliveryFailure(webhookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	webhook, ok := s.webhooks[webhookID]
	if !ok {
		return storage.ErrWebhookNotFound
	}
	webhook.FailedDeliveries++
	return nil
}

func sortWebhooks(webhooks []domain.Webhook) {
	sort.SliceStable(webhooks, func(i, j int) bool {
		return webhooks[i].CreatedAt.Before(webhooks[j].CreatedAt)
	})
}

// cloneWebhook 深拷贝 Webhook，避免调用方修改内部状态。
func cloneWebhook(webhook *domain.Webhook) *domain.Webhook {
	clone := *webhook
	clone.Events = make([]string, len(webhook.Events))
	copy(clone.Events, webhook.Events)
	if webhook.LastDeliveryAt != nil {
		at := *webhook.LastDeliveryAt
		clone.LastDeliveryAt = &at
	}
	return &clone
}
