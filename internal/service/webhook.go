package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"phishguard/backend/internal/dispatch"
	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// WebhookService Webhook 服务
type WebhookService struct {
	store      domain.Store
	dispatcher *dispatch.Dispatcher
}

// NewWebhookService 创建 Webhook 服务
func NewWebhookService(store domain.Store, dispatcher *dispatch.Dispatcher) *WebhookService {
	return &WebhookService{
		store:      store,
		dispatcher: dispatcher,
	}
}

// CreateWebhookInput 创建 Webhook 输入
type CreateWebhookInput struct {
	OwnerID        string   `json:"-"` // 从JWT中获取，不需要客户端提供
	Name           string   `json:"name" binding:"required,max=100"`
	URL            string   `json:"url" binding:"required,url"`
	Events         []string `json:"events" binding:"required,min=1"`
	Secret         string   `json:"secret" binding:"omitempty,max=200"`
	RetryCount     *int     `json:"retryCount"`
	TimeoutSeconds *int     `json:"timeoutSeconds"`
}

// UpdateWebhookInput 更新 Webhook 输入
type UpdateWebhookInput struct {
	Name           string   `json:"name" binding:"omitempty,max=100"`
	URL            string   `json:"url" binding:"omitempty,url"`
	Events         []string `json:"events" binding:"omitempty,min=1"`
	Secret         *string  `json:"secret"`
	Enabled        *bool    `json:"enabled"`
	RetryCount     *int     `json:"retryCount"`
	TimeoutSeconds *int     `json:"timeoutSeconds"`
}

// CreateWebhook 创建 Webhook，未提供密钥时自动生成。
func (s *WebhookService) CreateWebhook(input CreateWebhookInput) (*domain.Webhook, error) {
	now := time.Now()
	webhook := &domain.Webhook{
		ID:             uuid.New().String(),
		OwnerID:        input.OwnerID,
		Name:           input.Name,
		URL:            input.URL,
		Events:         input.Events,
		Enabled:        true,
		Secret:         input.Secret,
		RetryCount:     3,
		TimeoutSeconds: 10,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if webhook.Secret == "" {
		webhook.Secret = generateSecret()
	}
	if input.RetryCount != nil {
		webhook.RetryCount = *input.RetryCount
	}
	if input.TimeoutSeconds != nil {
		webhook.TimeoutSeconds = *input.TimeoutSeconds
	}

	if err := domain.ValidateWebhook(webhook); err != nil {
		return nil, err
	}
	if err := s.store.CreateWebhook(webhook); err != nil {
		return nil, err
	}
	return webhook, nil
}

// GetWebhook 获取用户名下的 Webhook
func (s *WebhookService) GetWebhook(ownerID, id string) (*domain.Webhook, error) {
	webhook, err := s.store.GetWebhook(id)
	if err != nil {
		return nil, err
	}
	if webhook.OwnerID != ownerID {
		return nil, storage.ErrWebhookNotFound
	}
	return webhook, nil
}

// ListWebhooks 列出用户的 Webhooks
func (s *WebhookService) ListWebhooks(ownerID string) ([]domain.Webhook, error) {
	return s.store.ListWebhooks(ownerID)
}

// UpdateWebhook 更新 Webhook，未提供的字段保持原值。
func (s *WebhookService) UpdateWebhook(ownerID, id string, input UpdateWebhookInput) (*domain.Webhook, error) {
	webhook, err := s.GetWebhook(ownerID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		webhook.Name = input.Name
	}
	if input.URL != "" {
		webhook.URL = input.URL
	}
	if len(input.Events) > 0 {
		webhook.Events = input.Events
	}
	if input.Secret != nil {
		webhook.Secret = *input.Secret
	}
	if input.Enabled != nil {
		webhook.Enabled = *input.Enabled
	}
	if input.RetryCount != nil {
		webhook.RetryCount = *input.RetryCount
	}
	if input.TimeoutSeconds != nil {
		webhook.TimeoutSeconds = *input.TimeoutSeconds
	}
	webhook.UpdatedAt = time.Now()

	if err := domain.ValidateWebhook(webhook); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWebhook(webhook); err != nil {
		return nil, err
	}
	return s.GetWebhook(ownerID, id)
}

// DeleteWebhook 删除 Webhook
func (s *WebhookService) DeleteWebhook(ownerID, id string) error {
	if _, err := s.GetWebhook(ownerID, id); err != nil {
		return err
	}
	return s.store.DeleteWebhook(id)
}

// TestWebhook 向 Webhook 发送一次测试投递
func (s *WebhookService) TestWebhook(ctx context.Context, ownerID, id string) (*domain.DeliveryAttempt, error) {
	if _, err := s.GetWebhook(ownerID, id); err != nil {
		return nil, err
	}
	return s.dispatcher.Test(ctx, id)
}

// GetDeliveries 获取投递台账记录
func (s *WebhookService) GetDeliveries(ownerID, id string, limit int) ([]domain.DeliveryAttempt, error) {
	if _, err := s.GetWebhook(ownerID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.store.ListDeliveryAttempts(id, limit)
}

// StatsSummary Webhook 投递统计摘要
func (s *WebhookService) StatsSummary(ownerID string) (*domain.WebhookStatsSummary, error) {
	webhooks, err := s.store.ListWebhooks(ownerID)
	if err != nil {
		return nil, err
	}

	summary := &domain.WebhookStatsSummary{
		TotalWebhooks: len(webhooks),
	}
	for _, webhook := range webhooks {
		if webhook.Enabled {
			summary.EnabledWebhooks++
		}
		summary.TotalSuccessful += webhook.SuccessfulDeliveries
		summary.TotalFailed += webhook.FailedDeliveries
		if webhook.LastDeliveryAt != nil {
			if summary.LastDeliveryAt == nil || webhook.LastDeliveryAt.After(*summary.LastDeliveryAt) {
				at := *webhook.LastDeliveryAt
				summary.LastDeliveryAt = &at
			}
		}
	}
	return summary, nil
}

// generateSecret 生成 Webhook 密钥
func generateSecret() string {
	return uuid.New().String()
}
