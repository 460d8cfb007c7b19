package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/engine"
	"phishguard/backend/internal/monitoring"
)

// EmailService 邮件记录服务
//
// 入库即触发：记录落库后先发高风险事件，再同步跑一轮规则。
// 规则动作不做网络 I/O，同步应用不会被订阅方拖慢。
type EmailService struct {
	store             domain.Store
	engine            *engine.RuleEngine
	sink              engine.EventSink
	metrics           *monitoring.Metrics
	logger            *zap.Logger
	highRiskThreshold float64
}

// NewEmailService 创建邮件记录服务
func NewEmailService(
	store domain.Store,
	eng *engine.RuleEngine,
	sink engine.EventSink,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	highRiskThreshold float64,
) *EmailService {
	return &EmailService{
		store:             store,
		engine:            eng,
		sink:              sink,
		metrics:           metrics,
		logger:            logger,
		highRiskThreshold: highRiskThreshold,
	}
}

// IngestEmailInput 邮件入库输入
type IngestEmailInput struct {
	OwnerID    string    `json:"-"` // 从JWT中获取，不需要客户端提供
	FromAddr   string    `json:"fromAddr" binding:"required,max=320"`
	Subject    string    `json:"subject" binding:"omitempty,max=998"`
	Domain     string    `json:"domain" binding:"omitempty,max=253"`
	Score      float64   `json:"score" binding:"min=0,max=100"`
	URLsCount  int       `json:"urlsCount" binding:"min=0"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// IngestResult 邮件入库结果
type IngestResult struct {
	Email        *domain.EmailRecord        `json:"email"`
	AppliedRules []domain.AppliedRuleResult `json:"appliedRules"`
}

// Ingest 接收一条上游分析产出的邮件记录并应用规则。
func (s *EmailService) Ingest(ctx context.Context, input IngestEmailInput) (*IngestResult, error) {
	now := time.Now()
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	email := &domain.EmailRecord{
		ID:         uuid.New().String(),
		OwnerID:    input.OwnerID,
		FromAddr:   input.FromAddr,
		Subject:    input.Subject,
		Domain:     input.Domain,
		Score:      input.Score,
		URLsCount:  input.URLsCount,
		Status:     domain.EmailStatusPending,
		ReceivedAt: receivedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if email.Domain == "" {
		email.Domain = senderDomain(email.FromAddr)
	}

	if err := s.store.SaveEmail(email); err != nil {
		return nil, err
	}

	highRisk := email.Score >= s.highRiskThreshold
	s.metrics.RecordEmailIngested(highRisk)
	if highRisk {
		s.emitHighRisk(email)
	}

	start := time.Now()
	applied, skipped, err := s.engine.Apply(ctx, email)
	if err != nil {
		s.logger.Error("规则应用失败",
			zap.String("emailId", email.ID),
			zap.Error(err))
		s.metrics.RecordError("rule_pass", "email_service")
	}

	matched := 0
	for _, result := range applied {
		matched += boolToInt(result.Matched)
		for _, outcome := range result.ActionsApplied {
			s.metrics.RecordAction(string(outcome.Type), outcome.Success)
		}
	}
	s.metrics.RecordRulePass(len(applied), matched, skipped, time.Since(start))

	return &IngestResult{Email: email, AppliedRules: applied}, nil
}

// GetEmail 获取用户名下的邮件记录
func (s *EmailService) GetEmail(ownerID, id string) (*domain.EmailRecord, error) {
	return s.store.GetEmail(ownerID, id)
}

// ListEmails 列出用户的邮件记录
func (s *EmailService) ListEmails(ownerID string) ([]domain.EmailRecord, error) {
	return s.store.ListEmails(ownerID)
}

// ListBlockedSenders 列出用户的发件人黑名单
func (s *EmailService) ListBlockedSenders(ownerID string) ([]domain.BlockedSender, error) {
	return s.store.ListBlockedSenders(ownerID)
}

// ListTrustedDomains 列出用户的可信域名
func (s *EmailService) ListTrustedDomains(ownerID string) ([]domain.TrustedDomain, error) {
	return s.store.ListTrustedDomains(ownerID)
}

// emitHighRisk 入队高风险事件
func (s *EmailService) emitHighRisk(email *domain.EmailRecord) {
	event := domain.Event{
		ID:      uuid.NewString(),
		OwnerID: email.OwnerID,
		Type:    domain.EventHighRiskDetected,
		Data: map[string]interface{}{
			"email_id":  email.ID,
			"subject":   email.Subject,
			"from_addr": email.FromAddr,
			"domain":    email.Domain,
			"score":     email.Score,
		},
		Timestamp: time.Now(),
	}
	if !s.sink.Enqueue(event) {
		s.logger.Warn("高风险事件入队失败",
			zap.String("emailId", email.ID))
	}
}

// senderDomain 从发件地址提取域名
func senderDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.ToLower(addr[i+1:])
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
