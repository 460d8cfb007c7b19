package domain

import "time"

// RuleMatchStat 单条规则的命中统计
type RuleMatchStat struct {
	RuleID       string `json:"ruleId"`
	Name         string `json:"name"`
	Priority     int    `json:"priority"`
	MatchedCount int64  `json:"matchedCount"`
}

// RuleStatsSummary 用户规则的汇总统计
type RuleStatsSummary struct {
	TotalRules   int             `json:"totalRules"`
	EnabledRules int             `json:"enabledRules"`
	TotalMatches int64           `json:"totalMatches"`
	TopRules     []RuleMatchStat `json:"topRules"` // 按命中数倒序，最多 5 条
}

// WebhookStatsSummary 用户 Webhook 的投递汇总统计
type WebhookStatsSummary struct {
	TotalWebhooks   int        `json:"totalWebhooks"`
	EnabledWebhooks int        `json:"enabledWebhooks"`
	TotalSuccessful int64      `json:"totalSuccessful"`
	TotalFailed     int64      `json:"totalFailed"`
	LastDeliveryAt  *time.Time `json:"lastDeliveryAt,omitempty"`
}
