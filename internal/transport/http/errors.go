package httptransport

import (
	"errors"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 存储错误
	storage.ErrEmailNotFound:     "邮件不存在",
	storage.ErrRuleNotFound:      "规则不存在",
	storage.ErrWebhookNotFound:   "Webhook不存在",
	storage.ErrDuplicateRuleName: "规则名称已存在",

	// 规则定义错误
	domain.ErrRuleNameRequired:    "规则名称不能为空",
	domain.ErrRuleNameTooLong:     "规则名称过长（最多100个字符）",
	domain.ErrEmptyConditions:     "规则至少需要一个条件",
	domain.ErrEmptyActions:        "规则至少需要一个动作",
	domain.ErrPriorityOutOfRange:  "优先级必须在0到100之间",
	domain.ErrUnknownField:        "未知的条件字段",
	domain.ErrUnknownOperator:     "未知的条件操作符",
	domain.ErrUnknownActionType:   "未知的动作类型",
	domain.ErrNonNumericField:     "该操作符仅支持数值字段",
	domain.ErrNonNumericValue:     "该操作符要求数值类型的比较值",
	domain.ErrInvalidRegex:        "正则表达式无效",
	domain.ErrRegexTooLong:        "正则表达式过长",
	domain.ErrMissingActionParam:  "缺少必需的动作参数",
	domain.ErrInvalidStatusParam:  "无效的状态参数",

	// Webhook 定义错误
	domain.ErrWebhookURLRequired:   "Webhook URL不能为空",
	domain.ErrWebhookURLInvalid:    "Webhook URL必须是有效的http(s)地址",
	domain.ErrEmptyEvents:          "Webhook至少需要订阅一个事件",
	domain.ErrUnknownEventType:     "未知的事件类型",
	domain.ErrRetryCountOutOfRange: "重试次数必须在0到10之间",
	domain.ErrTimeoutOutOfRange:    "超时时间必须在5到60秒之间",
}

// GetErrorMessage 获取错误的中文消息（支持被包装的错误）
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// definitionErrors 客户端可修复的定义类错误（返回400）
var definitionErrors = []error{
	domain.ErrRuleNameRequired,
	domain.ErrRuleNameTooLong,
	domain.ErrEmptyConditions,
	domain.ErrEmptyActions,
	domain.ErrPriorityOutOfRange,
	domain.ErrUnknownField,
	domain.ErrUnknownOperator,
	domain.ErrUnknownActionType,
	domain.ErrNonNumericField,
	domain.ErrNonNumericValue,
	domain.ErrInvalidRegex,
	domain.ErrRegexTooLong,
	domain.ErrMissingActionParam,
	domain.ErrInvalidStatusParam,
	domain.ErrWebhookURLRequired,
	domain.ErrWebhookURLInvalid,
	domain.ErrEmptyEvents,
	domain.ErrUnknownEventType,
	domain.ErrRetryCountOutOfRange,
	domain.ErrTimeoutOutOfRange,
}

// IsDefinitionError 判断是否为定义类错误
func IsDefinitionError(err error) bool {
	for _, target := range definitionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidLimit   = "limit参数格式无效"

	// 认证相关
	MsgAuthRequired     = "需要登录认证"
	MsgTokenInvalid     = "无效的访问令牌"
	MsgPermissionDenied = "权限不足"

	// 规则相关
	MsgRuleCreateFailed = "创建规则失败"
	MsgRuleNotFound     = "规则不存在"
	MsgRuleUpdateFailed = "更新规则失败"
	MsgRuleDeleteFailed = "删除规则失败"
	MsgRuleToggleFailed = "切换规则状态失败"
	MsgRuleTestFailed   = "规则测试失败"
	MsgRuleListFailed   = "获取规则列表失败"
	MsgRuleStatsFailed  = "获取规则统计失败"

	// Webhook 相关
	MsgWebhookCreateFailed  = "创建Webhook失败"
	MsgWebhookNotFound      = "Webhook不存在"
	MsgWebhookUpdateFailed  = "更新Webhook失败"
	MsgWebhookDeleteFailed  = "删除Webhook失败"
	MsgWebhookTestFailed    = "Webhook测试失败"
	MsgWebhookListFailed    = "获取Webhook列表失败"
	MsgDeliveryListFailed   = "获取投递记录失败"
	MsgWebhookStatsFailed   = "获取Webhook统计失败"

	// 邮件相关
	MsgEmailIngestFailed = "邮件接收失败"
	MsgEmailNotFound     = "邮件不存在"
	MsgEmailListFailed   = "获取邮件列表失败"
)
