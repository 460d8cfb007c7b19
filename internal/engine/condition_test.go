package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
)

func sampleEmail() *domain.EmailRecord {
	return &domain.EmailRecord{
		ID:        "e1",
		OwnerID:   "u1",
		FromAddr:  "Billing@Secure-Pay.io",
		Subject:   "Urgent: Payment Verification Required",
		Domain:    "secure-pay.io",
		Score:     72.5,
		URLsCount: 4,
		Status:    domain.EmailStatusPending,
	}
}

func TestEvaluate(t *testing.T) {
	ev := NewEvaluator(zap.NewNop())
	email := sampleEmail()

	eval := func(t *testing.T, field domain.ConditionField, op domain.ConditionOperator, value domain.ConditionValue) bool {
		t.Helper()
		matched, err := ev.Evaluate(&domain.Condition{Field: field, Operator: op, Value: value}, email)
		require.NoError(t, err)
		return matched
	}

	t.Run("equals对字符串大小写敏感", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldDomain, domain.OpEquals, domain.StringValue("secure-pay.io")))
		assert.False(t, eval(t, domain.FieldDomain, domain.OpEquals, domain.StringValue("Secure-Pay.io")))
	})

	t.Run("equals对数值字段按数值比较", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldURLsCount, domain.OpEquals, domain.NumberValue(4)))
		assert.True(t, eval(t, domain.FieldURLsCount, domain.OpEquals, domain.StringValue("4")))
		assert.False(t, eval(t, domain.FieldURLsCount, domain.OpEquals, domain.NumberValue(5)))
	})

	t.Run("contains大小写不敏感", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldSubject, domain.OpContains, domain.StringValue("payment verification")))
		assert.True(t, eval(t, domain.FieldFromAddr, domain.OpContains, domain.StringValue("BILLING")))
		assert.False(t, eval(t, domain.FieldSubject, domain.OpContains, domain.StringValue("invoice")))
	})

	t.Run("startswith和endswith大小写不敏感", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldSubject, domain.OpStartsWith, domain.StringValue("urgent")))
		assert.True(t, eval(t, domain.FieldFromAddr, domain.OpEndsWith, domain.StringValue("@secure-pay.io")))
		assert.False(t, eval(t, domain.FieldSubject, domain.OpStartsWith, domain.StringValue("payment")))
	})

	t.Run("contains作用在数值字段上判false", func(t *testing.T) {
		assert.False(t, eval(t, domain.FieldScore, domain.OpContains, domain.StringValue("72")))
	})

	t.Run("数值大小比较", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldScore, domain.OpGreaterThan, domain.NumberValue(60)))
		assert.False(t, eval(t, domain.FieldScore, domain.OpGreaterThan, domain.NumberValue(80)))
		assert.True(t, eval(t, domain.FieldURLsCount, domain.OpLessThan, domain.NumberValue(10)))
		assert.True(t, eval(t, domain.FieldScore, domain.OpGreaterThan, domain.StringValue("60")))
	})

	t.Run("数值比较作用在字符串字段上报定义错误", func(t *testing.T) {
		_, err := ev.Evaluate(&domain.Condition{
			Field: domain.FieldSubject, Operator: domain.OpGreaterThan, Value: domain.NumberValue(1),
		}, email)
		assert.ErrorIs(t, err, domain.ErrNonNumericField)
	})

	t.Run("数值比较的值不可转数字报定义错误", func(t *testing.T) {
		_, err := ev.Evaluate(&domain.Condition{
			Field: domain.FieldScore, Operator: domain.OpGreaterThan, Value: domain.StringValue("high"),
		}, email)
		assert.ErrorIs(t, err, domain.ErrNonNumericValue)
	})

	t.Run("in接受列表值", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldStatus, domain.OpIn, domain.ListValue("pending", "analyzed")))
		assert.False(t, eval(t, domain.FieldStatus, domain.OpIn, domain.ListValue("reported")))
	})

	t.Run("in接受逗号分隔的字符串", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldDomain, domain.OpIn, domain.StringValue("phish.io, secure-pay.io")))
	})

	t.Run("in作用在数值字段上按数值比较", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldURLsCount, domain.OpIn, domain.ListValue("3", "4", "5")))
		assert.False(t, eval(t, domain.FieldURLsCount, domain.OpIn, domain.ListValue("1", "2")))
	})

	t.Run("regex整串匹配", func(t *testing.T) {
		assert.True(t, eval(t, domain.FieldDomain, domain.OpRegex, domain.StringValue(`[a-z-]+\.io`)))
		assert.False(t, eval(t, domain.FieldDomain, domain.OpRegex, domain.StringValue(`[a-z-]+`)))
	})

	t.Run("非法正则报定义错误", func(t *testing.T) {
		_, err := ev.Evaluate(&domain.Condition{
			Field: domain.FieldSubject, Operator: domain.OpRegex, Value: domain.StringValue("([a-z"),
		}, email)
		assert.ErrorIs(t, err, domain.ErrInvalidRegex)
	})

	t.Run("回溯型恶意模式在线性时间内完成", func(t *testing.T) {
		long := make([]byte, 200)
		for i := range long {
			long[i] = 'a'
		}
		email := sampleEmail()
		email.Subject = string(long)

		matched, err := ev.Evaluate(&domain.Condition{
			Field: domain.FieldSubject, Operator: domain.OpRegex, Value: domain.StringValue(`(a+)+b`),
		}, email)
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("未知字段判false而非报错", func(t *testing.T) {
		matched, err := ev.Evaluate(&domain.Condition{
			Field: "body", Operator: domain.OpContains, Value: domain.StringValue("x"),
		}, email)
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("相同模式命中正则缓存", func(t *testing.T) {
		cond := &domain.Condition{Field: domain.FieldDomain, Operator: domain.OpRegex, Value: domain.StringValue(`secure-.*`)}
		for i := 0; i < 3; i++ {
			matched, err := ev.Evaluate(cond, email)
			require.NoError(t, err)
			assert.True(t, matched)
		}
		ev.mu.RLock()
		_, cached := ev.regexCache[`secure-.*`]
		ev.mu.RUnlock()
		assert.True(t, cached)
	})
}
