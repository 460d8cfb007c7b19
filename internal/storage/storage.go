package storage

import "errors"

var (
	// ErrEmailNotFound 邮件记录未找到错误
	ErrEmailNotFound = errors.New("email not found")
	// ErrRuleNotFound 规则未找到错误
	ErrRuleNotFound = errors.New("rule not found")
	// ErrWebhookNotFound Webhook 未找到错误
	ErrWebhookNotFound = errors.New("webhook not found")
	// ErrDuplicateRuleName 同一用户下规则名称重复错误
	ErrDuplicateRuleName = errors.New("rule name already exists")
)
