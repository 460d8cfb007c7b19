package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// 配置类校验错误：在创建/更新时同步拒绝，绝不落库
var (
	ErrRuleNameRequired    = errors.New("rule name is required")
	ErrRuleNameTooLong     = errors.New("rule name too long (max 100 chars)")
	ErrEmptyConditions     = errors.New("rule must have at least one condition")
	ErrEmptyActions        = errors.New("rule must have at least one action")
	ErrPriorityOutOfRange  = errors.New("priority must be between 0 and 100")
	ErrUnknownField        = errors.New("unknown condition field")
	ErrUnknownOperator     = errors.New("unknown condition operator")
	ErrUnknownActionType   = errors.New("unknown action type")
	ErrNonNumericField     = errors.New("operator requires a numeric field")
	ErrNonNumericValue     = errors.New("operator requires a numeric value")
	ErrInvalidRegex        = errors.New("invalid regex pattern")
	ErrRegexTooLong        = errors.New("regex pattern too long")
	ErrMissingActionParam  = errors.New("missing required action parameter")
	ErrInvalidStatusParam  = errors.New("invalid status parameter")
	ErrWebhookURLRequired  = errors.New("webhook url is required")
	ErrWebhookURLInvalid   = errors.New("webhook url must be a valid http(s) url")
	ErrEmptyEvents         = errors.New("webhook must subscribe to at least one event")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrRetryCountOutOfRange = errors.New("retry count must be between 0 and 10")
	ErrTimeoutOutOfRange   = errors.New("timeout must be between 5 and 60 seconds")
)

// 校验常量
const (
	MaxRuleNameLength = 100
	MaxRegexLength    = 500 // 用户提供的正则长度上限

	MinRetryCount     = 0
	MaxRetryCount     = 10
	MinTimeoutSeconds = 5
	MaxTimeoutSeconds = 60
)

// ValidateRule 校验整条规则定义
//
// 空条件/动作列表、非法字段/运算符/参数组合都在这里被拒绝，
// 不会等到逐封邮件求值时才暴露。
func ValidateRule(rule *Rule) error {
	if rule.Name == "" {
		return ErrRuleNameRequired
	}
	if len(rule.Name) > MaxRuleNameLength {
		return ErrRuleNameTooLong
	}
	if rule.Priority < 0 || rule.Priority > 100 {
		return ErrPriorityOutOfRange
	}
	if len(rule.Conditions) == 0 {
		return ErrEmptyConditions
	}
	if len(rule.Actions) == 0 {
		return ErrEmptyActions
	}
	for i := range rule.Conditions {
		if err := ValidateCondition(&rule.Conditions[i]); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	for i := range rule.Actions {
		if err := ValidateAction(&rule.Actions[i]); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// ValidateCondition 校验单个条件
func ValidateCondition(c *Condition) error {
	if !ValidConditionField(string(c.Field)) {
		return ErrUnknownField
	}
	if !ValidConditionOperator(string(c.Operator)) {
		return ErrUnknownOperator
	}

	switch c.Operator {
	case OpGreaterThan, OpLessThan:
		// 数值比较只允许作用在数值字段上，且值必须可转数字
		if !c.Field.Numeric() {
			return ErrNonNumericField
		}
		if _, ok := c.Value.AsNumber(); !ok {
			return ErrNonNumericValue
		}
	case OpRegex:
		pattern := c.Value.AsString()
		if len(pattern) > MaxRegexLength {
			return ErrRegexTooLong
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRegex, err)
		}
	}
	return nil
}

// ValidateAction 校验单个动作及其必填参数
func ValidateAction(a *Action) error {
	if !ValidActionType(string(a.Type)) {
		return ErrUnknownActionType
	}

	switch a.Type {
	case ActionMarkStatus:
		status := a.Param("status")
		if status == "" {
			return fmt.Errorf("%w: status", ErrMissingActionParam)
		}
		if !ValidEmailStatus(status) {
			return ErrInvalidStatusParam
		}
	case ActionAddLabel:
		if a.Param("label") == "" {
			return fmt.Errorf("%w: label", ErrMissingActionParam)
		}
	}
	return nil
}

// ValidateWebhook 校验 Webhook 配置
func ValidateWebhook(w *Webhook) error {
	if w.URL == "" {
		return ErrWebhookURLRequired
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrWebhookURLInvalid
	}
	if len(w.Events) == 0 {
		return ErrEmptyEvents
	}
	for _, e := range w.Events {
		if !ValidEventType(e) {
			return fmt.Errorf("%w: %s", ErrUnknownEventType, e)
		}
	}
	if w.RetryCount < MinRetryCount || w.RetryCount > MaxRetryCount {
		return ErrRetryCountOutOfRange
	}
	if w.TimeoutSeconds < MinTimeoutSeconds || w.TimeoutSeconds > MaxTimeoutSeconds {
		return ErrTimeoutOutOfRange
	}
	return nil
}
