package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/engine"
	"phishguard/backend/internal/storage"
)

// RuleService 规则服务
//
// 写入路径上的完整校验在这里完成：进了存储的规则要么可以被
// 引擎完整求值，要么根本不存在。
type RuleService struct {
	store  domain.Store
	engine *engine.RuleEngine
}

// NewRuleService 创建规则服务
func NewRuleService(store domain.Store, eng *engine.RuleEngine) *RuleService {
	return &RuleService{
		store:  store,
		engine: eng,
	}
}

// CreateRuleInput 创建规则输入
type CreateRuleInput struct {
	OwnerID     string             `json:"-"` // 从JWT中获取，不需要客户端提供
	Name        string             `json:"name" binding:"required,max=100"`
	Description string             `json:"description" binding:"omitempty,max=500"`
	Conditions  []domain.Condition `json:"conditions" binding:"required"`
	Actions     []domain.Action    `json:"actions" binding:"required"`
	Enabled     *bool              `json:"enabled"`
	Priority    int                `json:"priority"`
}

// UpdateRuleInput 更新规则输入
type UpdateRuleInput struct {
	Name        string             `json:"name" binding:"required,max=100"`
	Description string             `json:"description" binding:"omitempty,max=500"`
	Conditions  []domain.Condition `json:"conditions" binding:"required"`
	Actions     []domain.Action    `json:"actions" binding:"required"`
	Enabled     *bool              `json:"enabled"`
	Priority    int                `json:"priority"`
}

// CreateRule 创建规则
func (s *RuleService) CreateRule(input CreateRuleInput) (*domain.Rule, error) {
	now := time.Now()
	rule := &domain.Rule{
		ID:          uuid.New().String(),
		OwnerID:     input.OwnerID,
		Name:        input.Name,
		Description: input.Description,
		Conditions:  input.Conditions,
		Actions:     input.Actions,
		Enabled:     true,
		Priority:    input.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}

	if err := domain.ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.store.CreateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRule 获取用户名下的规则
func (s *RuleService) GetRule(ownerID, id string) (*domain.Rule, error) {
	rule, err := s.store.GetRule(id)
	if err != nil {
		return nil, err
	}
	if rule.OwnerID != ownerID {
		return nil, storage.ErrRuleNotFound
	}
	return rule, nil
}

// ListRules 列出用户的全部规则
func (s *RuleService) ListRules(ownerID string) ([]domain.Rule, error) {
	return s.store.ListRules(ownerID)
}

// UpdateRule 更新规则
func (s *RuleService) UpdateRule(ownerID, id string, input UpdateRuleInput) (*domain.Rule, error) {
	existing, err := s.GetRule(ownerID, id)
	if err != nil {
		return nil, err
	}

	rule := &domain.Rule{
		ID:          existing.ID,
		OwnerID:     existing.OwnerID,
		Name:        input.Name,
		Description: input.Description,
		Conditions:  input.Conditions,
		Actions:     input.Actions,
		Enabled:     existing.Enabled,
		Priority:    input.Priority,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now(),
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}

	if err := domain.ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRule(rule); err != nil {
		return nil, err
	}
	return s.GetRule(ownerID, id)
}

// DeleteRule 删除规则
//
// 删除即终点：已入队的事件照常投递，后续轮次不再评估该规则。
func (s *RuleService) DeleteRule(ownerID, id string) error {
	if _, err := s.GetRule(ownerID, id); err != nil {
		return err
	}
	return s.store.DeleteRule(id)
}

// ToggleRule 翻转规则的启用状态
func (s *RuleService) ToggleRule(ownerID, id string) (*domain.Rule, error) {
	rule, err := s.GetRule(ownerID, id)
	if err != nil {
		return nil, err
	}

	rule.Enabled = !rule.Enabled
	rule.UpdatedAt = time.Now()
	if err := s.store.UpdateRule(rule); err != nil {
		return nil, err
	}
	return s.GetRule(ownerID, id)
}

// TestRule 在指定邮件上试运行规则，不执行动作、不更新计数。
func (s *RuleService) TestRule(ownerID, ruleID, emailID string) (*domain.RuleTestResult, error) {
	rule, err := s.GetRule(ownerID, ruleID)
	if err != nil {
		return nil, err
	}
	email, err := s.store.GetEmail(ownerID, emailID)
	if err != nil {
		return nil, err
	}

	result := s.engine.Test(rule, email)
	return &result, nil
}

// StatsSummary 规则统计摘要
func (s *RuleService) StatsSummary(ownerID string) (*domain.RuleStatsSummary, error) {
	rules, err := s.store.ListRules(ownerID)
	if err != nil {
		return nil, err
	}

	summary := &domain.RuleStatsSummary{
		TotalRules: len(rules),
		TopRules:   make([]domain.RuleMatchStat, 0),
	}
	for _, rule := range rules {
		if rule.Enabled {
			summary.EnabledRules++
		}
		summary.TotalMatches += rule.MatchedCount
		if rule.MatchedCount > 0 {
			summary.TopRules = append(summary.TopRules, domain.RuleMatchStat{
				RuleID:       rule.ID,
				Name:         rule.Name,
				Priority:     rule.Priority,
				MatchedCount: rule.MatchedCount,
			})
		}
	}

	sort.SliceStable(summary.TopRules, func(i, j int) bool {
		return summary.TopRules[i].MatchedCount > summary.TopRules[j].MatchedCount
	})
	if len(summary.TopRules) > 5 {
		summary.TopRules = summary.TopRules[:5]
	}
	return summary, nil
}
