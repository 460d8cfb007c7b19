package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
	"phishguard/backend/internal/storage/memory"
)

// captureSink 收集引擎产出的事件，便于断言。
type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
	full   bool
}

func (s *captureSink) Enqueue(event domain.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.events = append(s.events, event)
	return true
}

func (s *captureSink) byType(t domain.EventType) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newEngine(t *testing.T) (*RuleEngine, *memory.Store, *captureSink) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	sink := &captureSink{}
	executor := NewActionExecutor(store, sink, logger)
	return NewRuleEngine(store, NewEvaluator(logger), executor, logger), store, sink
}

func storeEmail(t *testing.T, store *memory.Store, email *domain.EmailRecord) {
	t.Helper()
	require.NoError(t, store.SaveEmail(email))
}

func storeRule(t *testing.T, store *memory.Store, rule *domain.Rule) {
	t.Helper()
	require.NoError(t, store.CreateRule(rule))
}

func TestApply(t *testing.T) {
	t.Run("高风险支付钓鱼被标记并上报", func(t *testing.T) {
		eng, store, sink := newEngine(t)
		email := sampleEmail()
		storeEmail(t, store, email)
		storeRule(t, store, &domain.Rule{
			ID:      "r1",
			OwnerID: "u1",
			Name:    "payment-phish",
			Conditions: []domain.Condition{
				{Field: domain.FieldSubject, Operator: domain.OpContains, Value: domain.StringValue("payment verification")},
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions: []domain.Action{
				{Type: domain.ActionMarkStatus, Params: map[string]string{"status": "reported"}},
				{Type: domain.ActionFlag},
				{Type: domain.ActionAddLabel, Params: map[string]string{"label": "phishing"}},
			},
			Enabled:  true,
			Priority: 80,
		})

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Matched)
		require.Len(t, results[0].ActionsApplied, 3)
		for _, outcome := range results[0].ActionsApplied {
			assert.True(t, outcome.Success)
		}

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.EmailStatusReported, got.Status)
		assert.True(t, got.Flagged)
		assert.Equal(t, []string{"phishing"}, got.Labels)

		assert.Len(t, sink.byType(domain.EventEmailReported), 1)
		assert.Len(t, sink.byType(domain.EventEmailFlagged), 1)

		rule, err := store.GetRule("r1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rule.MatchedCount)
	})

	t.Run("auto_report入队一条rule_triggered事件", func(t *testing.T) {
		eng, store, sink := newEngine(t)
		email := sampleEmail()
		email.Subject = "Payment Verification Needed"
		email.Score = 75
		storeEmail(t, store, email)
		storeRule(t, store, &domain.Rule{
			ID:      "r1",
			OwnerID: "u1",
			Name:    "payment-report",
			Conditions: []domain.Condition{
				{Field: domain.FieldSubject, Operator: domain.OpContains, Value: domain.StringValue("payment verification")},
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions: []domain.Action{
				{Type: domain.ActionAutoReport},
				{Type: domain.ActionMarkStatus, Params: map[string]string{"status": "reported"}},
			},
			Enabled:  true,
			Priority: 80,
		})

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Matched)

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.EmailStatusReported, got.Status)

		triggered := sink.byType(domain.EventRuleTriggered)
		require.Len(t, triggered, 1)
		assert.Equal(t, "u1", triggered[0].OwnerID)
		assert.Equal(t, "r1", triggered[0].Data["rule_id"])
		assert.Equal(t, "payment-report", triggered[0].Data["rule_name"])
		assert.Equal(t, "e1", triggered[0].Data["email_id"])
		assert.NotEmpty(t, triggered[0].ID)

		rule, err := store.GetRule("r1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rule.MatchedCount)
	})

	t.Run("条件AND短路_未命中不执行动作", func(t *testing.T) {
		eng, store, sink := newEngine(t)
		email := sampleEmail()
		email.Score = 30
		storeEmail(t, store, email)
		storeRule(t, store, &domain.Rule{
			ID:      "r1",
			OwnerID: "u1",
			Name:    "high-score",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions:  []domain.Action{{Type: domain.ActionFlag}},
			Enabled:  true,
			Priority: 50,
		})

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].Matched)
		assert.Empty(t, results[0].ActionsApplied)
		assert.Empty(t, sink.events)

		rule, err := store.GetRule("r1")
		require.NoError(t, err)
		assert.Zero(t, rule.MatchedCount)
	})

	t.Run("delete动作终止本轮后续规则", func(t *testing.T) {
		eng, store, _ := newEngine(t)
		email := sampleEmail()
		storeEmail(t, store, email)

		base := time.Now()
		deleter := &domain.Rule{
			ID: "r1", OwnerID: "u1", Name: "drop-it",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions:  []domain.Action{{Type: domain.ActionDelete}},
			Enabled:  true, Priority: 90, CreatedAt: base,
		}
		later := &domain.Rule{
			ID: "r2", OwnerID: "u1", Name: "never-reached",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(0)},
			},
			Actions:  []domain.Action{{Type: domain.ActionFlag}},
			Enabled:  true, Priority: 10, CreatedAt: base,
		}
		storeRule(t, store, deleter)
		storeRule(t, store, later)

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "r1", results[0].RuleID)
		require.Len(t, results[0].ActionsApplied, 1)
		assert.True(t, results[0].ActionsApplied[0].Terminal)

		_, err = store.GetEmail("u1", "e1")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)

		r2, err := store.GetRule("r2")
		require.NoError(t, err)
		assert.Zero(t, r2.MatchedCount)
	})

	t.Run("评估顺序按优先级降序同级按创建时间升序", func(t *testing.T) {
		eng, store, _ := newEngine(t)
		email := sampleEmail()
		storeEmail(t, store, email)

		base := time.Now()
		mk := func(id, name string, priority int, createdAt time.Time) {
			storeRule(t, store, &domain.Rule{
				ID: id, OwnerID: "u1", Name: name,
				Conditions: []domain.Condition{
					{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(0)},
				},
				Actions:  []domain.Action{{Type: domain.ActionAddLabel, Params: map[string]string{"label": name}}},
				Enabled:  true, Priority: priority, CreatedAt: createdAt,
			})
		}
		mk("r1", "third", 50, base)
		mk("r2", "second", 80, base.Add(time.Second))
		mk("r3", "first", 80, base)

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "first", results[0].RuleName)
		assert.Equal(t, "second", results[1].RuleName)
		assert.Equal(t, "third", results[2].RuleName)

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third"}, got.Labels)
	})

	t.Run("定义错误只跳过当前规则", func(t *testing.T) {
		eng, store, _ := newEngine(t)
		email := sampleEmail()
		storeEmail(t, store, email)

		broken := &domain.Rule{
			ID: "r1", OwnerID: "u1", Name: "broken",
			Conditions: []domain.Condition{
				{Field: domain.FieldSubject, Operator: domain.OpGreaterThan, Value: domain.NumberValue(1)},
			},
			Actions:  []domain.Action{{Type: domain.ActionFlag}},
			Enabled:  true, Priority: 90,
		}
		healthy := &domain.Rule{
			ID: "r2", OwnerID: "u1", Name: "healthy",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions:  []domain.Action{{Type: domain.ActionFlag}},
			Enabled:  true, Priority: 10,
		}
		storeRule(t, store, broken)
		storeRule(t, store, healthy)

		results, skipped, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		assert.Equal(t, 1, skipped)
		require.Len(t, results, 1)
		assert.Equal(t, "healthy", results[0].RuleName)
		assert.True(t, results[0].Matched)
	})

	t.Run("动作失败不影响同规则后续动作", func(t *testing.T) {
		eng, store, _ := newEngine(t)
		email := sampleEmail()
		storeEmail(t, store, email)
		storeRule(t, store, &domain.Rule{
			ID: "r1", OwnerID: "u1", Name: "mixed",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions: []domain.Action{
				{Type: domain.ActionMarkStatus, Params: map[string]string{"status": "bogus"}},
				{Type: domain.ActionFlag},
			},
			Enabled: true, Priority: 50,
		})

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].ActionsApplied, 2)
		assert.False(t, results[0].ActionsApplied[0].Success)
		assert.NotEmpty(t, results[0].ActionsApplied[0].Error)
		assert.True(t, results[0].ActionsApplied[1].Success)
	})

	t.Run("重复应用幂等_不重复发事件", func(t *testing.T) {
		eng, store, sink := newEngine(t)
		email := sampleEmail()
		storeEmail(t, store, email)
		storeRule(t, store, &domain.Rule{
			ID: "r1", OwnerID: "u1", Name: "flagger",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions: []domain.Action{
				{Type: domain.ActionMarkStatus, Params: map[string]string{"status": "reported"}},
				{Type: domain.ActionFlag},
			},
			Enabled: true, Priority: 50,
		})

		_, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		_, _, err = eng.Apply(context.Background(), email)
		require.NoError(t, err)

		assert.Len(t, sink.byType(domain.EventEmailReported), 1)
		assert.Len(t, sink.byType(domain.EventEmailFlagged), 1)
	})

	t.Run("队列已满时事件被丢弃但动作照常生效", func(t *testing.T) {
		eng, store, sink := newEngine(t)
		sink.full = true
		email := sampleEmail()
		storeEmail(t, store, email)
		storeRule(t, store, &domain.Rule{
			ID: "r1", OwnerID: "u1", Name: "flagger",
			Conditions: []domain.Condition{
				{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(60)},
			},
			Actions: []domain.Action{{Type: domain.ActionFlag}},
			Enabled: true, Priority: 50,
		})

		results, _, err := eng.Apply(context.Background(), email)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].ActionsApplied[0].Success)

		got, err := store.GetEmail("u1", "e1")
		require.NoError(t, err)
		assert.True(t, got.Flagged)
		assert.Empty(t, sink.events)
	})
}

func TestRuleTest(t *testing.T) {
	eng, _, sink := newEngine(t)
	email := sampleEmail()

	rule := &domain.Rule{
		ID: "r1", OwnerID: "u1", Name: "dry-run",
		Conditions: []domain.Condition{
			{Field: domain.FieldSubject, Operator: domain.OpContains, Value: domain.StringValue("payment")},
			{Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.NumberValue(90)},
			{Field: domain.FieldDomain, Operator: domain.OpEndsWith, Value: domain.StringValue(".io")},
		},
		Actions: []domain.Action{{Type: domain.ActionFlag}},
	}

	t.Run("不短路_逐条返回求值结果", func(t *testing.T) {
		result := eng.Test(rule, email)
		assert.False(t, result.Matches)
		require.Len(t, result.Conditions, 3)
		assert.True(t, result.Conditions[0].Matched)
		assert.False(t, result.Conditions[1].Matched)
		assert.True(t, result.Conditions[2].Matched)
	})

	t.Run("不产生副作用", func(t *testing.T) {
		assert.False(t, email.Flagged)
		assert.Empty(t, sink.events)
	})

	t.Run("定义错误附在对应条件上", func(t *testing.T) {
		bad := &domain.Rule{
			Conditions: []domain.Condition{
				{Field: domain.FieldSubject, Operator: domain.OpGreaterThan, Value: domain.NumberValue(1)},
			},
		}
		result := eng.Test(bad, email)
		assert.False(t, result.Matches)
		require.Len(t, result.Conditions, 1)
		assert.NotEmpty(t, result.Conditions[0].Error)
	})
}
