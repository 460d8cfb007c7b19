package engine

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
)

// Evaluator 对单个条件求值
//
// 求值错误一律视为规则定义错误：该规则在本轮被跳过，不影响其它规则。
// Go 的正则引擎保证线性时间匹配，配合写入时的长度上限，恶意模式
// 不会拖垮求值。
type Evaluator struct {
	logger *zap.Logger

	mu         sync.RWMutex
	regexCache map[string]*regexp.Regexp
}

// NewEvaluator 创建条件求值器。
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{
		logger:     logger,
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// Evaluate 在一封邮件上对单个条件求值。
//
// 返回 error 表示条件定义有问题（未知字段以外的类型不匹配、非法正则），
// 未知字段直接判 false。
func (e *Evaluator) Evaluate(cond *domain.Condition, email *domain.EmailRecord) (bool, error) {
	if !domain.ValidConditionField(string(cond.Field)) {
		return false, nil
	}

	switch cond.Operator {
	case domain.OpEquals:
		return e.evalEquals(cond, email)
	case domain.OpContains:
		return e.evalSubstring(cond, email, strings.Contains)
	case domain.OpStartsWith:
		return e.evalSubstring(cond, email, strings.HasPrefix)
	case domain.OpEndsWith:
		return e.evalSubstring(cond, email, strings.HasSuffix)
	case domain.OpGreaterThan, domain.OpLessThan:
		return e.evalNumeric(cond, email)
	case domain.OpIn:
		return e.evalIn(cond, email)
	case domain.OpRegex:
		return e.evalRegex(cond, email)
	}
	return false, domain.ErrUnknownOperator
}

// evalEquals 精确相等，数值字段按数值比较，字符串字段大小写敏感。
func (e *Evaluator) evalEquals(cond *domain.Condition, email *domain.EmailRecord) (bool, error) {
	if cond.Field.Numeric() {
		want, ok := cond.Value.AsNumber()
		if !ok {
			return false, domain.ErrNonNumericValue
		}
		return numericField(cond.Field, email) == want, nil
	}
	return stringField(cond.Field, email) == cond.Value.AsString(), nil
}

// evalSubstring 子串类运算符，大小写不敏感，数值字段不参与判 false。
func (e *Evaluator) evalSubstring(cond *domain.Condition, email *domain.EmailRecord, match func(s, substr string) bool) (bool, error) {
	if cond.Field.Numeric() {
		return false, nil
	}
	haystack := strings.ToLower(stringField(cond.Field, email))
	needle := strings.ToLower(cond.Value.AsString())
	return match(haystack, needle), nil
}

// evalNumeric 数值比较，要求数值字段与可转数字的值。
func (e *Evaluator) evalNumeric(cond *domain.Condition, email *domain.EmailRecord) (bool, error) {
	if !cond.Field.Numeric() {
		return false, domain.ErrNonNumericField
	}
	want, ok := cond.Value.AsNumber()
	if !ok {
		return false, domain.ErrNonNumericValue
	}
	got := numericField(cond.Field, email)
	if cond.Operator == domain.OpGreaterThan {
		return got > want, nil
	}
	return got < want, nil
}

// evalIn 集合成员判断，列表值逐项精确比较，字符串值按逗号拆分。
func (e *Evaluator) evalIn(cond *domain.Condition, email *domain.EmailRecord) (bool, error) {
	var candidates []string
	switch cond.Value.Kind {
	case domain.ValueList:
		candidates = cond.Value.List
	case domain.ValueString:
		for _, item := range strings.Split(cond.Value.Str, ",") {
			candidates = append(candidates, strings.TrimSpace(item))
		}
	default:
		return false, fmt.Errorf("in operator requires a list or string value")
	}

	if cond.Field.Numeric() {
		got := numericField(cond.Field, email)
		for _, candidate := range candidates {
			want, ok := domain.StringValue(candidate).AsNumber()
			if ok && got == want {
				return true, nil
			}
		}
		return false, nil
	}

	got := stringField(cond.Field, email)
	for _, candidate := range candidates {
		if got == candidate {
			return true, nil
		}
	}
	return false, nil
}

// evalRegex 正则全匹配。
func (e *Evaluator) evalRegex(cond *domain.Condition, email *domain.EmailRecord) (bool, error) {
	pattern := cond.Value.AsString()
	if len(pattern) > domain.MaxRegexLength {
		return false, domain.ErrRegexTooLong
	}

	re, err := e.compile(pattern)
	if err != nil {
		e.logger.Warn("正则编译失败",
			zap.String("pattern", pattern),
			zap.Error(err))
		return false, domain.ErrInvalidRegex
	}
	return re.MatchString(stringField(cond.Field, email)), nil
}

// compile 编译并缓存全匹配正则。
func (e *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	e.mu.RLock()
	re, ok := e.regexCache[pattern]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.regexCache[pattern] = re
	e.mu.Unlock()
	return re, nil
}

// stringField 取字符串字段值。
func stringField(field domain.ConditionField, email *domain.EmailRecord) string {
	switch field {
	case domain.FieldFromAddr:
		return email.FromAddr
	case domain.FieldSubject:
		return email.Subject
	case domain.FieldDomain:
		return email.Domain
	case domain.FieldStatus:
		return string(email.Status)
	}
	return ""
}

// numericField 取数值字段值。
func numericField(field domain.ConditionField, email *domain.EmailRecord) float64 {
	switch field {
	case domain.FieldScore:
		return email.Score
	case domain.FieldURLsCount:
		return float64(email.URLsCount)
	}
	return 0
}
