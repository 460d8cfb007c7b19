package memory

import (
	"sort"
	"time"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// CreateRule 创建规则，同一用户下名称唯一。
func (s *Store) CreateRule(rule *domain.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rulesByOwner[rule.OwnerID] {
		if existing.Name == rule.Name {
			return storage.ErrDuplicateRuleName
		}
	}

	clone := cloneRule(rule)
	s.rules[rule.ID] = clone
	if s.rulesByOwner[rule.OwnerID] == nil {
		s.rulesByOwner[rule.OwnerID] = make(map[string]*domain.Rule)
	}
	s.rulesByOwner[rule.OwnerID][rule.ID] = clone
	return nil
}

// GetRule 根据 ID 获取规则。
func (s *Store) GetRule(id string) (*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, storage.ErrRuleNotFound
	}
	return cloneRule(rule), nil
}

// GetRuleByName 按名称获取用户的规则。
func (s *Store) GetRuleByName(ownerID, name string) (*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rulesByOwner[ownerID] {
		if rule.Name == name {
			return cloneRule(rule), nil
		}
	}
	return nil, storage.ErrRuleNotFound
}

// ListRules 列出用户的全部规则，按 priority 降序、created_at 升序排序。
func (s *Store) ListRules(ownerID string) ([]domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.Rule, 0, len(s.rulesByOwner[ownerID]))
	for _, rule := range s.rulesByOwner[ownerID] {
		rules = append(rules, *cloneRule(rule))
	}
	sortRules(rules)
	return rules, nil
}

// ListEnabledRules 列出用户启用的规则，排序与 ListRules 一致。
func (s *Store) ListEnabledRules(ownerID string) ([]domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.Rule, 0)
	for _, rule := range s.rulesByOwner[ownerID] {
		if rule.Enabled {
			rules = append(rules, *cloneRule(rule))
		}
	}
	sortRules(rules)
	return rules, nil
}

// UpdateRule 更新规则，保留命中计数与创建时间。
func (s *Store) UpdateRule(rule *domain.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return storage.ErrRuleNotFound
	}
	for _, other := range s.rulesByOwner[existing.OwnerID] {
		if other.ID != rule.ID && other.Name == rule.Name {
			return storage.ErrDuplicateRuleName
		}
	}

	clone := cloneRule(rule)
	clone.OwnerID = existing.OwnerID
	clone.MatchedCount = existing.MatchedCount
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	s.rules[rule.ID] = clone
	s.rulesByOwner[existing.OwnerID][rule.ID] = clone

	*rule = *cloneRule(clone)
	return nil
}

// DeleteRule 删除规则。
func (s *Store) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return storage.ErrRuleNotFound
	}
	delete(s.rules, id)
	delete(s.rulesByOwner[rule.OwnerID], id)
	return nil
}

// IncrementRuleMatched 在锁内递增命中计数。
func (s *Store) IncrementRuleMatched(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return storage.ErrRuleNotFound
	}
	rule.MatchedCount++
	return nil
}

// sortRules 按 priority 降序、created_at 升序的稳定排序。
func sortRules(rules []domain.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

// cloneRule 深拷贝规则，避免调用方修改内部状态。
func cloneRule(rule *domain.Rule) *domain.Rule {
	clone := *rule
	clone.Conditions = make([]domain.Condition, len(rule.Conditions))
	copy(clone.Conditions, rule.Conditions)
	clone.Actions = make([]domain.Action, len(rule.Actions))
	for i, action := range rule.Actions {
		clone.Actions[i] = action
		if action.Params != nil {
			params := make(map[string]string, len(action.Params))
			for k, v := range action.Params {
				params[k] = v
			}
			clone.Actions[i].Params = params
		}
	}
	return &clone
}
