package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

func newEmail(id, ownerID string, score float64) *domain.EmailRecord {
	now := time.Now()
	return &domain.EmailRecord{
		ID:         id,
		OwnerID:    ownerID,
		FromAddr:   "alerts@example.com",
		Subject:    "account notice",
		Domain:     "example.com",
		Score:      score,
		Status:     domain.EmailStatusPending,
		ReceivedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newRule(id, ownerID, name string, priority int) *domain.Rule {
	now := time.Now()
	return &domain.Rule{
		ID:      id,
		OwnerID: ownerID,
		Name:    name,
		Conditions: []domain.Condition{
			{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
		},
		Actions: []domain.Action{
			{Type: domain.ActionFlag},
		},
		Enabled:   true,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestEmailStorage(t *testing.T) {
	store := NewStore()

	t.Run("保存后可按用户读取", func(t *testing.T) {
		require.NoError(t, store.SaveEmail(newEmail("e1", "u1", 75)))

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, 75.0, got.Score)
	})

	t.Run("其他用户读取不到", func(t *testing.T) {
		_, err := store.GetEmail("u2", "e1")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})

	t.Run("状态更新与复核标记", func(t *testing.T) {
		require.NoError(t, store.UpdateEmailStatus("u1", "e1", domain.EmailStatusReported))
		require.NoError(t, store.SetEmailFlagged("u1", "e1", true))

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.EmailStatusReported, got.Status)
		assert.True(t, got.Flagged)
	})

	t.Run("标签追加去重", func(t *testing.T) {
		require.NoError(t, store.AddEmailLabel("u1", "e1", "suspicious"))
		require.NoError(t, store.AddEmailLabel("u1", "e1", "suspicious"))

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, []string{"suspicious"}, got.Labels)
	})

	t.Run("读取结果是副本", func(t *testing.T) {
		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		got.Labels[0] = "mutated"

		again, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, "suspicious", again.Labels[0])
	})

	t.Run("删除后读取返回未找到", func(t *testing.T) {
		require.NoError(t, store.DeleteEmail("u1", "e1"))
		_, err := store.GetEmail("u1", "e1")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})
}

func TestSenderAndDomainLists(t *testing.T) {
	store := NewStore()

	t.Run("重复加入黑名单是幂等的", func(t *testing.T) {
		require.NoError(t, store.BlockSender("u1", "evil@phish.io"))
		require.NoError(t, store.BlockSender("u1", "evil@phish.io"))

		entries, err := store.ListBlockedSenders("u1")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("白名单按用户隔离", func(t *testing.T) {
		require.NoError(t, store.TrustDomain("u1", "corp.example.com"))

		entries, err := store.ListTrustedDomains("u2")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestRuleStorage(t *testing.T) {
	store := NewStore()

	t.Run("同一用户下名称唯一", func(t *testing.T) {
		require.NoError(t, store.CreateRule(newRule("r1", "u1", "high-score", 80)))
		assert.ErrorIs(t, store.CreateRule(newRule("r2", "u1", "high-score", 50)), storage.ErrDuplicateRuleName)
	})

	t.Run("不同用户可以重名", func(t *testing.T) {
		assert.NoError(t, store.CreateRule(newRule("r3", "u2", "high-score", 80)))
	})

	t.Run("更新保留命中计数与创建时间", func(t *testing.T) {
		require.NoError(t, store.IncrementRuleMatched("r1"))
		original, err := store.GetRule("r1")
		require.NoError(t, err)

		updated := newRule("r1", "u1", "high-score-v2", 90)
		require.NoError(t, store.UpdateRule(updated))

		got, err := store.GetRule("r1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.MatchedCount)
		assert.Equal(t, original.CreatedAt, got.CreatedAt)
		assert.Equal(t, 90, got.Priority)
	})

	t.Run("删除后操作返回未找到", func(t *testing.T) {
		require.NoError(t, store.DeleteRule("r1"))
		assert.ErrorIs(t, store.IncrementRuleMatched("r1"), storage.ErrRuleNotFound)
	})
}

func TestListEnabledRulesOrdering(t *testing.T) {
	store := NewStore()

	base := time.Now()
	mk := func(id, name string, priority int, createdAt time.Time, enabled bool) {
		rule := newRule(id, "u1", name, priority)
		rule.CreatedAt = createdAt
		rule.Enabled = enabled
		require.NoError(t, store.CreateRule(rule))
	}

	mk("r1", "a", 50, base, true)
	mk("r2", "b", 80, base.Add(2*time.Second), true)
	mk("r3", "c", 80, base.Add(time.Second), true)
	mk("r4", "d", 99, base, false)

	t.Run("优先级降序_同优先级按创建时间升序", func(t *testing.T) {
		rules, err := store.ListEnabledRules("u1")
		require.NoError(t, err)
		require.Len(t, rules, 3)
		assert.Equal(t, "r3", rules[0].ID)
		assert.Equal(t, "r2", rules[1].ID)
		assert.Equal(t, "r1", rules[2].ID)
	})

	t.Run("排序结果可重复", func(t *testing.T) {
		first, err := store.ListEnabledRules("u1")
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := store.ListEnabledRules("u1")
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}
