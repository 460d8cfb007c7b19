package memory

import (
	"sort"
	"time"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// SaveEmail 保存邮件记录。
func (s *Store) SaveEmail(email *domain.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneEmail(email)
	s.emails[email.ID] = clone
	if s.emailsByOwner[email.OwnerID] == nil {
		s.emailsByOwner[email.OwnerID] = make(map[string]*domain.EmailRecord)
	}
	s.emailsByOwner[email.OwnerID][email.ID] = clone
	return nil
}

// GetEmail 获取用户名下的单条邮件记录。
func (s *Store) GetEmail(ownerID, id string) (*domain.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emailsByOwner[ownerID][id]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	return cloneEmail(email), nil
}

// ListEmails 列出用户的全部邮件记录，按接收时间倒序。
func (s *Store) ListEmails(ownerID string) ([]domain.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := make([]domain.EmailRecord, 0, len(s.emailsByOwner[ownerID]))
	for _, email := range s.emailsByOwner[ownerID] {
		emails = append(emails, *cloneEmail(email))
	}
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
	})
	return emails, nil
}

// UpdateEmailStatus 更新邮件状态。
func (s *Store) UpdateEmailStatus(ownerID, id string, status domain.EmailStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailsByOwner[ownerID][id]
	if !ok {
		return storage.ErrEmailNotFound
	}
	email.Status = status
	email.UpdatedAt = time.Now()
	return nil
}

// SetEmailFlagged 设置人工复核标记。
func (s *Store) SetEmailFlagged(ownerID, id string, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailsByOwner[ownerID][id]
	if !ok {
		return storage.ErrEmailNotFound
	}
	email.Flagged = flagged
	email.UpdatedAt = time.Now()
	return nil
}

// AddEmailLabel 为邮件追加标签，已存在时不重复追加。
func (s *Store) AddEmailLabel(ownerID, id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailsByOwner[ownerID][id]
	if !ok {
		return storage.ErrEmailNotFound
	}
	if email.HasLabel(label) {
		return nil
	}
	email.Labels = append(email.Labels, label)
	email.UpdatedAt = time.Now()
	return nil
}

// DeleteEmail 删除邮件记录。
func (s *Store) DeleteEmail(ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emailsByOwner[ownerID][id]; !ok {
		return storage.ErrEmailNotFound
	}
	delete(s.emails, id)
	delete(s.emailsByOwner[ownerID], id)
	return nil
}

// BlockSender 将发件人加入用户黑名单，重复加入不报错。
func (s *Store) BlockSender(ownerID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocked[ownerID] == nil {
		s.blocked[ownerID] = make(map[string]*domain.BlockedSender)
	}
	if _, ok := s.blocked[ownerID][address]; ok {
		return nil
	}
	s.blocked[ownerID][address] = &domain.BlockedSender{
		OwnerID:   ownerID,
		Address:   address,
		CreatedAt: time.Now(),
	}
	return nil
}

// TrustDomain 将域名加入用户白名单，重复加入不报错。
func (s *Store) TrustDomain(ownerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trusted[ownerID] == nil {
		s.trusted[ownerID] = make(map[string]*domain.TrustedDomain)
	}
	if _, ok := s.trusted[ownerID][name]; ok {
		return nil
	}
	s.trusted[ownerID][name] = &domain.TrustedDomain{
		OwnerID:   ownerID,
		Domain:    name,
		CreatedAt: time.Now(),
	}
	return nil
}

// ListBlockedSenders 列出用户黑名单。
func (s *Store) ListBlockedSenders(ownerID string) ([]domain.BlockedSender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.BlockedSender, 0, len(s.blocked[ownerID]))
	for _, entry := range s.blocked[ownerID] {
		entries = append(entries, *entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// ListTrustedDomains 列出用户白名单。
func (s *Store) ListTrustedDomains(ownerID string) ([]domain.TrustedDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.TrustedDomain, 0, len(s.trusted[ownerID]))
	for _, entry := range s.trusted[ownerID] {
		entries = append(entries, *entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// cloneEmail 深拷贝邮件记录，避免调用方修改内部状态。
func cloneEmail(email *domain.EmailRecord) *domain.EmailRecord {
	clone := *email
	clone.Labels = make([]string, len(email.Labels))
	copy(clone.Labels, email.Labels)
	return &clone
}
