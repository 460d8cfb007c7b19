package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// CreateWebhook 创建 Webhook。
func (s *Store) CreateWebhook(webhook *domain.Webhook) error {
	return s.gormDB.Create(webhook).Error
}

// GetWebhook 根据 ID 获取 Webhook。
func (s *Store) GetWebhook(id string) (*domain.Webhook, error) {
	var webhook domain.Webhook
	err := s.gormDB.First(&webhook, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrWebhookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

// ListWebhooks 列出用户的全部 Webhooks。
func (s *Store) ListWebhooks(ownerID string) ([]domain.Webhook, error) {
	var webhooks []domain.Webhook
	err := s.gormDB.
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&webhooks).Error
	return webhooks, err
}

// ListWebhooksByEvent 列出用户已启用且订阅了指定事件的 Webhooks。
//
// 订阅列表以 JSON 存储，事件过滤在应用侧完成以保持跨数据库兼容。
func (s *Store) ListWebhooksByEvent(ownerID string, event domain.EventType) ([]domain.Webhook, error) {
	var webhooks []domain.Webhook
	err := s.gormDB.
		Where("owner_id = ? AND enabled = ?", ownerID, true).
		Order("created_at ASC").
		Find(&webhooks).Error
	if err != nil {
		return nil, err
	}

	subscribed := webhooks[:0]
	for _, webhook := range webhooks {
		if webhook.SubscribesTo(event) {
			subscribed = append(subscribed, webhook)
		}
	}
	return subscribed, nil
}

// UpdateWebhook 更新 Webhook，投递计数与创建时间不在更新范围内。
func (s *Store) UpdateWebhook(webhook *domain.Webhook) error {
	result := s.gormDB.Model(&domain.Webhook{}).
		Where("id = ?", webhook.ID).
		Select("name", "url", "events", "enabled", "secret", "retry_count", "timeout_seconds", "updated_at").
		Updates(webhook)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrWebhookNotFound
	}
	return nil
}

// DeleteWebhook 删除 Webhook 及其投递记录。
func (s *Store) DeleteWebhook(id string) error {
	result := s.gormDB.Delete(&domain.Webhook{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrWebhookNotFound
	}
	return s.gormDB.Delete(&domain.DeliveryAttempt{}, "webhook_id = ?", id).Error
}

// RecordDeliveryAttempt 追加一条投递记录。
func (s *Store) RecordDeliveryAttempt(attempt *domain.DeliveryAttempt) error {
	return s.gormDB.Create(attempt).Error
}

// ListDeliveryAttempts 按时间倒序返回最近的投递记录。
func (s *Store) ListDeliveryAttempts(webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
	var attempts []domain.DeliveryAttempt
	query := s.gormDB.
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&attempts).Error
	return attempts, err
}

// MarkDeliverySuccess 在数据库侧原子递增成功计数并刷新最近投递时间。
func (s *Store) MarkDeliverySuccess(webhookID string, at time.Time) error {
	result := s.gormDB.Model(&domain.Webhook{}).
		Where("id = ?", webhookID).
		UpdateColumns(map[string]interface{}{
			"successful_deliveries": gorm.Expr("successful_deliveries + 1"),
			"last_delivery_at":      at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrWebhookNotFound
	}
	return nil
}

// MarkDeliveryFailure 在数据库侧原子递增失败计数。
func (s *Store) MarkDeliveryFailure(webhookID string) error {
	result := s.gormDB.Model(&domain.Webhook{}).
		Where("id = ?", webhookID).
		UpdateColumn("failed_deliveries", gorm.Expr("failed_deliveries + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrWebhookNotFound
	}
	return nil
}
