package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"phishguard/backend/internal/service"
	"phishguard/backend/internal/storage"
)

// ========== Rule Handlers ==========

// createRule 创建规则
func (h *Handler) createRule(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	var input service.CreateRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.OwnerID = ownerID

	rule, err := h.rules.CreateRule(input)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateRuleName):
			Conflict(c, GetErrorMessage(err))
		case IsDefinitionError(err):
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgRuleCreateFailed)
		}
		return
	}

	Created(c, rule)
}

// listRules 列出当前用户的规则（按优先级降序）
func (h *Handler) listRules(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	rules, err := h.rules.ListRules(ownerID)
	if err != nil {
		InternalError(c, MsgRuleListFailed)
		return
	}

	Success(c, rules)
}

// getRule 获取规则详情
func (h *Handler) getRule(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	rule, err := h.rules.GetRule(ownerID, c.Param("id"))
	if err != nil {
		NotFound(c, MsgRuleNotFound)
		return
	}

	Success(c, rule)
}

// updateRule 更新规则（全量替换定义，保留统计）
func (h *Handler) updateRule(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	var input service.UpdateRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	rule, err := h.rules.UpdateRule(ownerID, c.Param("id"), input)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrRuleNotFound):
			NotFound(c, MsgRuleNotFound)
		case errors.Is(err, storage.ErrDuplicateRuleName):
			Conflict(c, GetErrorMessage(err))
		case IsDefinitionError(err):
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgRuleUpdateFailed)
		}
		return
	}

	Success(c, rule)
}

// deleteRule 删除规则
func (h *Handler) deleteRule(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	if err := h.rules.DeleteRule(ownerID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			NotFound(c, MsgRuleNotFound)
			return
		}
		InternalError(c, MsgRuleDeleteFailed)
		return
	}

	NoContent(c)
}

// toggleRule 启用/禁用规则
func (h *Handler) toggleRule(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	rule, err := h.rules.ToggleRule(ownerID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			NotFound(c, MsgRuleNotFound)
			return
		}
		InternalError(c, MsgRuleToggleFailed)
		return
	}

	Success(c, rule)
}

// testRule 对已有邮件做规则试运行（不执行动作、不计数）
func (h *Handler) testRule(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	emailID := c.Query("email_id")
	if emailID == "" {
		BadRequest(c, "缺少email_id参数")
		return
	}

	result, err := h.rules.TestRule(ownerID, c.Param("id"), emailID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrRuleNotFound):
			NotFound(c, MsgRuleNotFound)
		case errors.Is(err, storage.ErrEmailNotFound):
			NotFound(c, MsgEmailNotFound)
		default:
			InternalError(c, MsgRuleTestFailed)
		}
		return
	}

	Success(c, result)
}

// ruleStats 规则统计摘要
func (h *Handler) ruleStats(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	summary, err := h.rules.StatsSummary(ownerID)
	if err != nil {
		InternalError(c, MsgRuleStatsFailed)
		return
	}

	Success(c, summary)
}
