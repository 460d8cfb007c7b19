package sql

import (
	"errors"

	"gorm.io/gorm"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// CreateRule 创建规则，同一用户下名称唯一。
func (s *Store) CreateRule(rule *domain.Rule) error {
	var count int64
	if err := s.gormDB.Model(&domain.Rule{}).
		Where("owner_id = ? AND name = ?", rule.OwnerID, rule.Name).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrDuplicateRuleName
	}
	return s.gormDB.Create(rule).Error
}

// GetRule 根据 ID 获取规则。
func (s *Store) GetRule(id string) (*domain.Rule, error) {
	var rule domain.Rule
	err := s.gormDB.First(&rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// GetRuleByName 按名称获取用户的规则。
func (s *Store) GetRuleByName(ownerID, name string) (*domain.Rule, error) {
	var rule domain.Rule
	err := s.gormDB.First(&rule, "owner_id = ? AND name = ?", ownerID, name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules 列出用户的全部规则，按 priority 降序、created_at 升序排序。
func (s *Store) ListRules(ownerID string) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := s.gormDB.
		Where("owner_id = ?", ownerID).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// ListEnabledRules 列出用户启用的规则，排序与 ListRules 一致。
func (s *Store) ListEnabledRules(ownerID string) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := s.gormDB.
		Where("owner_id = ? AND enabled = ?", ownerID, true).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// UpdateRule 更新规则，命中计数与创建时间不在更新范围内。
func (s *Store) UpdateRule(rule *domain.Rule) error {
	existing, err := s.GetRule(rule.ID)
	if err != nil {
		return err
	}

	var count int64
	if err := s.gormDB.Model(&domain.Rule{}).
		Where("owner_id = ? AND name = ? AND id <> ?", existing.OwnerID, rule.Name, rule.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrDuplicateRuleName
	}

	return s.gormDB.Model(&domain.Rule{}).
		Where("id = ?", rule.ID).
		Select("name", "description", "conditions", "actions", "enabled", "priority", "updated_at").
		Updates(rule).Error
}

// DeleteRule 删除规则。
func (s *Store) DeleteRule(id string) error {
	result := s.gormDB.Delete(&domain.Rule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrRuleNotFound
	}
	return nil
}

// IncrementRuleMatched 在数据库侧原子递增命中计数。
func (s *Store) IncrementRuleMatched(id string) error {
	result := s.gormDB.Model(&domain.Rule{}).
		Where("id = ?", id).
		UpdateColumn("matched_count", gorm.Expr("matched_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrRuleNotFound
	}
	return nil
}
