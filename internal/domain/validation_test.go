package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRule() *Rule {
	return &Rule{
		Name:    "high-score",
		OwnerID: "user-1",
		Conditions: []Condition{
			{Field: FieldScore, Operator: OpGreaterThan, Value: NumberValue(60)},
		},
		Actions: []Action{
			{Type: ActionMarkStatus, Params: map[string]string{"status": "reported"}},
		},
		Priority: 80,
	}
}

func TestValidateRule(t *testing.T) {
	t.Run("合法规则通过校验", func(t *testing.T) {
		assert.NoError(t, ValidateRule(validRule()))
	})

	t.Run("空条件列表被拒绝", func(t *testing.T) {
		rule := validRule()
		rule.Conditions = nil
		assert.ErrorIs(t, ValidateRule(rule), ErrEmptyConditions)
	})

	t.Run("空动作列表被拒绝", func(t *testing.T) {
		rule := validRule()
		rule.Actions = []Action{}
		assert.ErrorIs(t, ValidateRule(rule), ErrEmptyActions)
	})

	t.Run("优先级越界被拒绝", func(t *testing.T) {
		rule := validRule()
		rule.Priority = 101
		assert.ErrorIs(t, ValidateRule(rule), ErrPriorityOutOfRange)
	})

	t.Run("未知字段被拒绝", func(t *testing.T) {
		rule := validRule()
		rule.Conditions = []Condition{{Field: "body", Operator: OpContains, Value: StringValue("x")}}
		assert.ErrorIs(t, ValidateRule(rule), ErrUnknownField)
	})

	t.Run("未知运算符被拒绝", func(t *testing.T) {
		rule := validRule()
		rule.Conditions = []Condition{{Field: FieldSubject, Operator: "matches", Value: StringValue("x")}}
		assert.ErrorIs(t, ValidateRule(rule), ErrUnknownOperator)
	})
}

func TestValidateCondition(t *testing.T) {
	t.Run("数值比较作用在字符串字段上是定义错误", func(t *testing.T) {
		c := Condition{Field: FieldSubject, Operator: OpGreaterThan, Value: NumberValue(1)}
		assert.ErrorIs(t, ValidateCondition(&c), ErrNonNumericField)
	})

	t.Run("数值比较的值必须可转数字", func(t *testing.T) {
		c := Condition{Field: FieldScore, Operator: OpGreaterThan, Value: StringValue("sixty")}
		assert.ErrorIs(t, ValidateCondition(&c), ErrNonNumericValue)
	})

	t.Run("数值比较接受数字形态的字符串", func(t *testing.T) {
		c := Condition{Field: FieldScore, Operator: OpGreaterThan, Value: StringValue("60")}
		assert.NoError(t, ValidateCondition(&c))
	})

	t.Run("非法正则在写入时被拒绝", func(t *testing.T) {
		c := Condition{Field: FieldSubject, Operator: OpRegex, Value: StringValue("([a-z")}
		assert.ErrorIs(t, ValidateCondition(&c), ErrInvalidRegex)
	})

	t.Run("超长正则被拒绝", func(t *testing.T) {
		long := make([]byte, MaxRegexLength+1)
		for i := range long {
			long[i] = 'a'
		}
		c := Condition{Field: FieldSubject, Operator: OpRegex, Value: StringValue(string(long))}
		assert.ErrorIs(t, ValidateCondition(&c), ErrRegexTooLong)
	})
}

func TestValidateAction(t *testing.T) {
	t.Run("mark_status缺少status参数被拒绝", func(t *testing.T) {
		a := Action{Type: ActionMarkStatus}
		assert.ErrorIs(t, ValidateAction(&a), ErrMissingActionParam)
	})

	t.Run("mark_status的status必须是合法状态", func(t *testing.T) {
		a := Action{Type: ActionMarkStatus, Params: map[string]string{"status": "spam"}}
		assert.ErrorIs(t, ValidateAction(&a), ErrInvalidStatusParam)
	})

	t.Run("add_label缺少label参数被拒绝", func(t *testing.T) {
		a := Action{Type: ActionAddLabel, Params: map[string]string{}}
		assert.ErrorIs(t, ValidateAction(&a), ErrMissingActionParam)
	})

	t.Run("未知动作类型被拒绝", func(t *testing.T) {
		a := Action{Type: "forward"}
		assert.ErrorIs(t, ValidateAction(&a), ErrUnknownActionType)
	})
}

func TestValidateWebhook(t *testing.T) {
	valid := func() *Webhook {
		return &Webhook{
			Name:           "ops",
			URL:            "https://example.com/hook",
			Events:         []string{string(EventRuleTriggered)},
			RetryCount:     3,
			TimeoutSeconds: 10,
		}
	}

	t.Run("合法配置通过校验", func(t *testing.T) {
		assert.NoError(t, ValidateWebhook(valid()))
	})

	t.Run("非HTTP协议的URL被拒绝", func(t *testing.T) {
		w := valid()
		w.URL = "ftp://example.com/hook"
		assert.ErrorIs(t, ValidateWebhook(w), ErrWebhookURLInvalid)
	})

	t.Run("空事件集合被拒绝", func(t *testing.T) {
		w := valid()
		w.Events = nil
		assert.ErrorIs(t, ValidateWebhook(w), ErrEmptyEvents)
	})

	t.Run("未知事件类型被拒绝", func(t *testing.T) {
		w := valid()
		w.Events = []string{"mail.received"}
		assert.ErrorIs(t, ValidateWebhook(w), ErrUnknownEventType)
	})

	t.Run("重试次数越界被拒绝", func(t *testing.T) {
		w := valid()
		w.RetryCount = 11
		assert.ErrorIs(t, ValidateWebhook(w), ErrRetryCountOutOfRange)
	})

	t.Run("超时越界被拒绝", func(t *testing.T) {
		w := valid()
		w.TimeoutSeconds = 61
		assert.ErrorIs(t, ValidateWebhook(w), ErrTimeoutOutOfRange)
	})
}

func TestConditionValueJSON(t *testing.T) {
	t.Run("字符串值往返", func(t *testing.T) {
		var v ConditionValue
		assert.NoError(t, json.Unmarshal([]byte(`"payment"`), &v))
		assert.Equal(t, ValueString, v.Kind)
		assert.Equal(t, "payment", v.Str)

		out, err := json.Marshal(v)
		assert.NoError(t, err)
		assert.JSONEq(t, `"payment"`, string(out))
	})

	t.Run("数字值往返", func(t *testing.T) {
		var v ConditionValue
		assert.NoError(t, json.Unmarshal([]byte(`60`), &v))
		assert.Equal(t, ValueNumber, v.Kind)
		assert.Equal(t, 60.0, v.Num)
	})

	t.Run("列表值往返", func(t *testing.T) {
		var v ConditionValue
		assert.NoError(t, json.Unmarshal([]byte(`["reported","pending"]`), &v))
		assert.Equal(t, ValueList, v.Kind)
		assert.Equal(t, []string{"reported", "pending"}, v.List)
	})

	t.Run("对象形态被拒绝", func(t *testing.T) {
		var v ConditionValue
		assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &v))
	})
}
