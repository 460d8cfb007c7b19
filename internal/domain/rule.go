package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ConditionField 条件字段（封闭集合）
type ConditionField string

const (
	FieldFromAddr  ConditionField = "from_addr"
	FieldSubject   ConditionField = "subject"
	FieldDomain    ConditionField = "domain"
	FieldScore     ConditionField = "score"
	FieldURLsCount ConditionField = "urls_count"
	FieldStatus    ConditionField = "status"
)

// Numeric 判断字段是否为数值字段
func (f ConditionField) Numeric() bool {
	return f == FieldScore || f == FieldURLsCount
}

// ValidConditionField 判断字段名是否属于合法集合
func ValidConditionField(f string) bool {
	switch ConditionField(f) {
	case FieldFromAddr, FieldSubject, FieldDomain, FieldScore, FieldURLsCount, FieldStatus:
		return true
	}
	return false
}

// ConditionOperator 条件运算符（封闭集合）
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpContains    ConditionOperator = "contains"
	OpStartsWith  ConditionOperator = "startswith"
	OpEndsWith    ConditionOperator = "endswith"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpIn          ConditionOperator = "in"
	OpRegex       ConditionOperator = "regex"
)

// ValidConditionOperator 判断运算符是否属于合法集合
func ValidConditionOperator(op string) bool {
	switch ConditionOperator(op) {
	case OpEquals, OpContains, OpStartsWith, OpEndsWith,
		OpGreaterThan, OpLessThan, OpIn, OpRegex:
		return true
	}
	return false
}

// ValueKind 条件值的类型标签
type ValueKind int

const (
	ValueString ValueKind = iota // 字符串
	ValueNumber                  // 数字
	ValueList                    // 字符串列表
)

// ConditionValue 条件值：字符串、数字或字符串列表之一
//
// JSON 形态在解析时就收敛为封闭的三种变体，其它形态（对象、嵌套数组等）
// 在反序列化阶段直接报错，不会流入求值阶段。
type ConditionValue struct {
	Kind ValueKind
	Str  string
	Num  float64
	List []string
}

// StringValue 构造字符串条件值
func StringValue(s string) ConditionValue {
	return ConditionValue{Kind: ValueString, Str: s}
}

// NumberValue 构造数字条件值
func NumberValue(n float64) ConditionValue {
	return ConditionValue{Kind: ValueNumber, Num: n}
}

// ListValue 构造列表条件值
func ListValue(items ...string) ConditionValue {
	return ConditionValue{Kind: ValueList, List: items}
}

// AsNumber 将条件值转换为数字
//
// 数字直接返回；字符串尝试解析；列表不可转换。
func (v ConditionValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Num, true
	case ValueString:
		n, err := strconv.ParseFloat(v.Str, 64)
		return n, err == nil
	}
	return 0, false
}

// AsString 返回条件值的字符串表示
func (v ConditionValue) AsString() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueList:
		b, _ := json.Marshal(v.List)
		return string(b)
	}
	return v.Str
}

// MarshalJSON 实现 json.Marshaler
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueList:
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Str)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = StringValue(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberValue(n)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListValue(list...)
		return nil
	}

	return fmt.Errorf("condition value must be a string, number or string list")
}

// Condition 对单个邮件字段的谓词
type Condition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    ConditionValue    `json:"value"`
}

// ActionType 动作类型（封闭集合）
type ActionType string

const (
	ActionMarkStatus  ActionType = "mark_status"  // 修改邮件状态
	ActionAutoReport  ActionType = "auto_report"  // 入队 rule_triggered 事件
	ActionFlag        ActionType = "flag"         // 设置人工复核标记
	ActionDelete      ActionType = "delete"       // 删除邮件（终止本轮规则）
	ActionAddLabel    ActionType = "add_label"    // 追加标签
	ActionBlockSender ActionType = "block_sender" // 发件人加入黑名单
	ActionTrustDomain ActionType = "trust_domain" // 域名加入可信列表
)

// ValidActionType 判断动作类型是否属于合法集合
func ValidActionType(t string) bool {
	switch ActionType(t) {
	case ActionMarkStatus, ActionAutoReport, ActionFlag, ActionDelete,
		ActionAddLabel, ActionBlockSender, ActionTrustDomain:
		return true
	}
	return false
}

// Action 规则命中后执行的单个动作
type Action struct {
	Type   ActionType        `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// Param 读取动作参数
func (a Action) Param(key string) string {
	if a.Params == nil {
		return ""
	}
	return a.Params[key]
}

// Rule 用户定义的过滤规则
type Rule struct {
	ID           string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID      string      `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	Name         string      `json:"name" gorm:"type:varchar(100);not null"` // 同一用户下唯一
	Description  string      `json:"description" gorm:"type:varchar(500)"`
	Conditions   []Condition `json:"conditions" gorm:"serializer:json;type:json"` // 非空，AND 语义
	Actions      []Action    `json:"actions" gorm:"serializer:json;type:json"`    // 非空，按声明顺序执行
	Enabled      bool        `json:"enabled" gorm:"default:true"`
	Priority     int         `json:"priority"`                     // 0..100，越大越先评估
	MatchedCount int64       `json:"matchedCount" gorm:"default:0"` // 仅由引擎原子递增
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// ActionOutcome 单个动作的执行结果
type ActionOutcome struct {
	Type     ActionType `json:"type"`
	Success  bool       `json:"success"`
	Terminal bool       `json:"terminal,omitempty"` // delete 动作：邮件已不存在，终止本轮
	Error    string     `json:"error,omitempty"`
}

// AppliedRuleResult 单条规则在一封邮件上的应用结果
type AppliedRuleResult struct {
	RuleID         string          `json:"ruleId"`
	RuleName       string          `json:"ruleName"`
	Matched        bool            `json:"matched"`
	ActionsApplied []ActionOutcome `json:"actionsApplied,omitempty"`
}

// ConditionResult 试运行时单个条件的求值结果
type ConditionResult struct {
	Index    int               `json:"index"`
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Matched  bool              `json:"matched"`
	Error    string            `json:"error,omitempty"`
}

// RuleTestResult 规则试运行结果（不执行任何动作）
type RuleTestResult struct {
	Matches    bool              `json:"matches"`
	Conditions []ConditionResult `json:"conditions"`
}

// RuleRepository 规则仓储接口
type RuleRepository interface {
	// CreateRule 创建规则
	CreateRule(rule *Rule) error

	// GetRule 获取规则
	GetRule(id string) (*Rule, error)

	// GetRuleByName 按名称获取用户的规则
	GetRuleByName(ownerID, name string) (*Rule, error)

	// ListRules 列出用户的全部规则
	ListRules(ownerID string) ([]Rule, error)

	// ListEnabledRules 列出用户启用的规则，按 priority 降序、created_at 升序排序
	ListEnabledRules(ownerID string) ([]Rule, error)

	// UpdateRule 更新规则
	UpdateRule(rule *Rule) error

	// DeleteRule 删除规则
	DeleteRule(id string) error

	// IncrementRuleMatched 原子递增规则命中计数
	IncrementRuleMatched(id string) error
}
