package httptransport

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"phishguard/backend/internal/service"
	"phishguard/backend/internal/storage"
)

// ========== Webhook Handlers ==========

// createWebhook 创建 Webhook 订阅
func (h *Handler) createWebhook(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	var input service.CreateWebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.OwnerID = ownerID

	webhook, err := h.webhooks.CreateWebhook(input)
	if err != nil {
		if IsDefinitionError(err) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgWebhookCreateFailed)
		return
	}

	Created(c, webhook)
}

// listWebhooks 列出当前用户的 Webhooks
func (h *Handler) listWebhooks(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	webhooks, err := h.webhooks.ListWebhooks(ownerID)
	if err != nil {
		InternalError(c, MsgWebhookListFailed)
		return
	}

	Success(c, webhooks)
}

// getWebhook 获取 Webhook 详情
func (h *Handler) getWebhook(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	webhook, err := h.webhooks.GetWebhook(ownerID, c.Param("id"))
	if err != nil {
		NotFound(c, MsgWebhookNotFound)
		return
	}

	Success(c, webhook)
}

// updateWebhook 更新 Webhook 配置（部分更新）
func (h *Handler) updateWebhook(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	var input service.UpdateWebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	webhook, err := h.webhooks.UpdateWebhook(ownerID, c.Param("id"), input)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrWebhookNotFound):
			NotFound(c, MsgWebhookNotFound)
		case IsDefinitionError(err):
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgWebhookUpdateFailed)
		}
		return
	}

	Success(c, webhook)
}

// deleteWebhook 删除 Webhook（连同投递记录）
func (h *Handler) deleteWebhook(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	if err := h.webhooks.DeleteWebhook(ownerID, c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrWebhookNotFound) {
			NotFound(c, MsgWebhookNotFound)
			return
		}
		InternalError(c, MsgWebhookDeleteFailed)
		return
	}

	NoContent(c)
}

// testWebhook 发送一次测试投递（同步等待结果）
func (h *Handler) testWebhook(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	record, err := h.webhooks.TestWebhook(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrWebhookNotFound) {
			NotFound(c, MsgWebhookNotFound)
			return
		}
		InternalError(c, MsgWebhookTestFailed)
		return
	}

	Success(c, record)
}

// webhookDeliveries 查看投递总账（最新的在前）
func (h *Handler) webhookDeliveries(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(c, MsgInvalidLimit)
			return
		}
		limit = parsed
	}

	attempts, err := h.webhooks.GetDeliveries(ownerID, c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, storage.ErrWebhookNotFound) {
			NotFound(c, MsgWebhookNotFound)
			return
		}
		InternalError(c, MsgDeliveryListFailed)
		return
	}

	Success(c, attempts)
}

// webhookStats Webhook 统计摘要
func (h *Handler) webhookStats(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	summary, err := h.webhooks.StatsSummary(ownerID)
	if err != nil {
		InternalError(c, MsgWebhookStatsFailed)
		return
	}

	Success(c, summary)
}
