package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// SaveEmail 保存邮件记录。
func (s *Store) SaveEmail(email *domain.EmailRecord) error {
	return s.gormDB.Create(email).Error
}

// GetEmail 获取用户名下的单条邮件记录。
func (s *Store) GetEmail(ownerID, id string) (*domain.EmailRecord, error) {
	var email domain.EmailRecord
	err := s.gormDB.First(&email, "owner_id = ? AND id = ?", ownerID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrEmailNotFound
	}
	if err != nil {
		return nil, err
	}
	return &email, nil
}

// ListEmails 列出用户的全部邮件记录，按接收时间倒序。
func (s *Store) ListEmails(ownerID string) ([]domain.EmailRecord, error) {
	var emails []domain.EmailRecord
	err := s.gormDB.
		Where("owner_id = ?", ownerID).
		Order("received_at DESC").
		Find(&emails).Error
	return emails, err
}

// UpdateEmailStatus 更新邮件状态。
func (s *Store) UpdateEmailStatus(ownerID, id string, status domain.EmailStatus) error {
	return s.updateEmailColumns(ownerID, id, map[string]interface{}{"status": status})
}

// SetEmailFlagged 设置人工复核标记。
func (s *Store) SetEmailFlagged(ownerID, id string, flagged bool) error {
	return s.updateEmailColumns(ownerID, id, map[string]interface{}{"flagged": flagged})
}

// AddEmailLabel 为邮件追加标签，已存在时不重复追加。
func (s *Store) AddEmailLabel(ownerID, id, label string) error {
	email, err := s.GetEmail(ownerID, id)
	if err != nil {
		return err
	}
	if email.HasLabel(label) {
		return nil
	}
	email.Labels = append(email.Labels, label)
	return s.updateEmailColumns(ownerID, id, map[string]interface{}{"labels": email.Labels})
}

// DeleteEmail 删除邮件记录。
func (s *Store) DeleteEmail(ownerID, id string) error {
	result := s.gormDB.Delete(&domain.EmailRecord{}, "owner_id = ? AND id = ?", ownerID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEmailNotFound
	}
	return nil
}

// BlockSender 将发件人加入用户黑名单，重复加入不报错。
func (s *Store) BlockSender(ownerID, address string) error {
	entry := &domain.BlockedSender{
		OwnerID:   ownerID,
		Address:   address,
		CreatedAt: time.Now(),
	}
	return s.gormDB.Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

// TrustDomain 将域名加入用户白名单，重复加入不报错。
func (s *Store) TrustDomain(ownerID, name string) error {
	entry := &domain.TrustedDomain{
		OwnerID:   ownerID,
		Domain:    name,
		CreatedAt: time.Now(),
	}
	return s.gormDB.Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

// ListBlockedSenders 列出用户黑名单。
func (s *Store) ListBlockedSenders(ownerID string) ([]domain.BlockedSender, error) {
	var entries []domain.BlockedSender
	err := s.gormDB.
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListTrustedDomains 列出用户白名单。
func (s *Store) ListTrustedDomains(ownerID string) ([]domain.TrustedDomain, error) {
	var entries []domain.TrustedDomain
	err := s.gormDB.
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// updateEmailColumns 更新邮件记录的指定列并刷新更新时间。
func (s *Store) updateEmailColumns(ownerID, id string, columns map[string]interface{}) error {
	columns["updated_at"] = time.Now()
	result := s.gormDB.Model(&domain.EmailRecord{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEmailNotFound
	}
	return nil
}
