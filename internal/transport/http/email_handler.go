package httptransport

import (
	"github.com/gin-gonic/gin"

	"phishguard/backend/internal/service"
)

// ========== Email Handlers ==========

// ingestEmail 接收一条上游分析产出的邮件记录
func (h *Handler) ingestEmail(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	var input service.IngestEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.OwnerID = ownerID

	result, err := h.emails.Ingest(c.Request.Context(), input)
	if err != nil {
		InternalError(c, MsgEmailIngestFailed)
		return
	}

	Created(c, result)
}

// listEmails 列出当前用户的邮件记录
func (h *Handler) listEmails(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	emails, err := h.emails.ListEmails(ownerID)
	if err != nil {
		InternalError(c, MsgEmailListFailed)
		return
	}

	Success(c, emails)
}

// getEmail 获取邮件记录详情
func (h *Handler) getEmail(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	email, err := h.emails.GetEmail(ownerID, c.Param("id"))
	if err != nil {
		NotFound(c, MsgEmailNotFound)
		return
	}

	Success(c, email)
}

// listBlockedSenders 列出已拦截的发件人
func (h *Handler) listBlockedSenders(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	senders, err := h.emails.ListBlockedSenders(ownerID)
	if err != nil {
		InternalError(c, "获取拦截列表失败")
		return
	}

	Success(c, senders)
}

// listTrustedDomains 列出已信任的域名
func (h *Handler) listTrustedDomains(c *gin.Context) {
	ownerID, ok := currentOwner(c)
	if !ok {
		return
	}

	domains, err := h.emails.ListTrustedDomains(ownerID)
	if err != nil {
		InternalError(c, "获取信任列表失败")
		return
	}

	Success(c, domains)
}
