package engine

import (
	"context"

	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
)

// RuleEngine 在一封邮件上按序应用用户的启用规则
//
// 规则列表在每轮开始时一次性读出，评估过程中的并发改动
// 要到下一轮才可见。引擎本身不做任何网络 I/O。
type RuleEngine struct {
	store     domain.Store
	evaluator *Evaluator
	executor  *ActionExecutor
	logger    *zap.Logger
}

// NewRuleEngine 创建规则引擎。
func NewRuleEngine(store domain.Store, evaluator *Evaluator, executor *ActionExecutor, logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		store:     store,
		evaluator: evaluator,
		executor:  executor,
		logger:    logger,
	}
}

// Apply 对一封邮件应用该用户的全部启用规则。
//
// 评估顺序：priority 降序、created_at 升序。条件按 AND 语义短路求值；
// 条件定义错误只跳过当前规则，返回值 skipped 为本轮被跳过的规则数。
// 命中规则的动作按声明顺序执行，单个动作失败不影响后续动作；
// delete 动作成功后终止本轮全部规则。
func (e *RuleEngine) Apply(ctx context.Context, email *domain.EmailRecord) ([]domain.AppliedRuleResult, int, error) {
	rules, err := e.store.ListEnabledRules(email.OwnerID)
	if err != nil {
		return nil, 0, err
	}

	skipped := 0
	results := make([]domain.AppliedRuleResult, 0, len(rules))
	for i := range rules {
		if err := ctx.Err(); err != nil {
			return results, skipped, err
		}
		rule := &rules[i]

		matched, evalErr := e.matches(rule, email)
		if evalErr != nil {
			e.logger.Warn("规则定义错误，本轮跳过",
				zap.String("ruleId", rule.ID),
				zap.String("ruleName", rule.Name),
				zap.String("emailId", email.ID),
				zap.Error(evalErr))
			skipped++
			continue
		}

		result := domain.AppliedRuleResult{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Matched:  matched,
		}
		if !matched {
			results = append(results, result)
			continue
		}

		if err := e.store.IncrementRuleMatched(rule.ID); err != nil {
			e.logger.Error("命中计数更新失败",
				zap.String("ruleId", rule.ID),
				zap.Error(err))
		}

		terminal := false
		for j := range rule.Actions {
			outcome := e.executor.Execute(rule, &rule.Actions[j], email)
			result.ActionsApplied = append(result.ActionsApplied, outcome)
			if outcome.Terminal {
				terminal = true
				break
			}
		}
		results = append(results, result)

		if terminal {
			e.logger.Info("邮件已删除，终止本轮规则",
				zap.String("ruleId", rule.ID),
				zap.String("emailId", email.ID))
			break
		}
	}

	return results, skipped, nil
}

// matches 按 AND 语义短路求值规则的全部条件。
func (e *RuleEngine) matches(rule *domain.Rule, email *domain.EmailRecord) (bool, error) {
	for i := range rule.Conditions {
		matched, err := e.evaluator.Evaluate(&rule.Conditions[i], email)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// Test 试运行规则：求值全部条件但不执行任何动作，也不更新命中计数。
//
// 与 Apply 不同，试运行不短路，逐条返回每个条件的求值结果。
func (e *RuleEngine) Test(rule *domain.Rule, email *domain.EmailRecord) domain.RuleTestResult {
	result := domain.RuleTestResult{
		Matches:    true,
		Conditions: make([]domain.ConditionResult, 0, len(rule.Conditions)),
	}

	for i := range rule.Conditions {
		cond := &rule.Conditions[i]
		matched, err := e.evaluator.Evaluate(cond, email)

		cr := domain.ConditionResult{
			Index:    i,
			Field:    cond.Field,
			Operator: cond.Operator,
			Matched:  matched,
		}
		if err != nil {
			cr.Error = err.Error()
			result.Matches = false
		} else if !matched {
			result.Matches = false
		}
		result.Conditions = append(result.Conditions, cr)
	}

	return result
}
