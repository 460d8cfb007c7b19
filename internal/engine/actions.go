package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
)

// EventSink 接收引擎产出的事件
//
// 实现必须是非阻塞的：队列已满时返回 false 并丢弃事件，
// 规则执行不等待任何网络 I/O。
type EventSink interface {
	Enqueue(event domain.Event) bool
}

// ActionExecutor 执行规则命中后的动作
//
// 动作的副作用落在存储上，事件通过 EventSink 异步流出。
type ActionExecutor struct {
	store  domain.Store
	sink   EventSink
	logger *zap.Logger
}

// NewActionExecutor 创建动作执行器。
func NewActionExecutor(store domain.Store, sink EventSink, logger *zap.Logger) *ActionExecutor {
	return &ActionExecutor{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// Execute 执行单个动作并返回结果。
//
// 动作失败不会中断本条规则后续动作；delete 成功后返回 Terminal，
// 调用方必须终止本轮全部规则。传入的 email 会被就地更新，
// 后续规则看到的是动作之后的状态。
func (x *ActionExecutor) Execute(rule *domain.Rule, action *domain.Action, email *domain.EmailRecord) domain.ActionOutcome {
	outcome := domain.ActionOutcome{Type: action.Type}

	var err error
	switch action.Type {
	case domain.ActionMarkStatus:
		err = x.markStatus(rule, action, email)
	case domain.ActionAutoReport:
		x.emit(rule, email, domain.EventRuleTriggered)
	case domain.ActionFlag:
		err = x.flag(rule, email)
	case domain.ActionDelete:
		if err = x.store.DeleteEmail(email.OwnerID, email.ID); err == nil {
			outcome.Terminal = true
		}
	case domain.ActionAddLabel:
		err = x.store.AddEmailLabel(email.OwnerID, email.ID, action.Param("label"))
	case domain.ActionBlockSender:
		err = x.store.BlockSender(email.OwnerID, email.FromAddr)
	case domain.ActionTrustDomain:
		err = x.store.TrustDomain(email.OwnerID, email.Domain)
	default:
		err = domain.ErrUnknownActionType
	}

	if err != nil {
		outcome.Error = err.Error()
		x.logger.Error("动作执行失败",
			zap.String("ruleId", rule.ID),
			zap.String("ruleName", rule.Name),
			zap.String("action", string(action.Type)),
			zap.String("emailId", email.ID),
			zap.Error(err))
		return outcome
	}

	outcome.Success = true
	return outcome
}

// markStatus 修改邮件状态，目标状态已生效时是幂等空操作。
func (x *ActionExecutor) markStatus(rule *domain.Rule, action *domain.Action, email *domain.EmailRecord) error {
	target := domain.EmailStatus(action.Param("status"))
	if !domain.ValidEmailStatus(string(target)) {
		return domain.ErrInvalidStatusParam
	}
	if email.Status == target {
		return nil
	}

	if err := x.store.UpdateEmailStatus(email.OwnerID, email.ID, target); err != nil {
		return err
	}
	email.Status = target

	if target == domain.EmailStatusReported {
		x.emit(rule, email, domain.EventEmailReported)
	}
	return nil
}

// flag 设置人工复核标记，已标记时是幂等空操作。
func (x *ActionExecutor) flag(rule *domain.Rule, email *domain.EmailRecord) error {
	if email.Flagged {
		return nil
	}
	if err := x.store.SetEmailFlagged(email.OwnerID, email.ID, true); err != nil {
		return err
	}
	email.Flagged = true
	x.emit(rule, email, domain.EventEmailFlagged)
	return nil
}

// emit 入队一条事件，队列满时记日志后丢弃。
func (x *ActionExecutor) emit(rule *domain.Rule, email *domain.EmailRecord, eventType domain.EventType) {
	event := domain.Event{
		ID:      uuid.NewString(),
		OwnerID: email.OwnerID,
		Type:    eventType,
		Data: map[string]interface{}{
			"email_id":  email.ID,
			"subject":   email.Subject,
			"from_addr": email.FromAddr,
			"score":     email.Score,
			"rule_id":   rule.ID,
			"rule_name": rule.Name,
		},
		Timestamp: time.Now(),
	}

	if !x.sink.Enqueue(event) {
		x.logger.Warn("事件队列已满，事件被丢弃",
			zap.String("eventId", event.ID),
			zap.String("eventType", string(eventType)),
			zap.String("emailId", email.ID))
	}
}
