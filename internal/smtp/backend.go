package smtp

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"phishguard/backend/internal/scoring"
	"phishguard/backend/internal/service"
)

// maxMessageSize 单封邮件的原文大小上限
const maxMessageSize = 10 << 20 // 10MB

// urlPattern 粗粒度提取正文中的链接
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// OwnerResolver 将收件地址解析为系统内的用户
//
// 只接收发给已登记收件地址的邮件，解析失败的收件人一律拒绝，
// 服务器不中继任何邮件。
type OwnerResolver interface {
	ResolveOwner(address string) (string, error)
}

// StaticResolver 基于静态映射的收件人解析器
type StaticResolver struct {
	owners map[string]string // 收件地址 -> ownerID
}

// NewStaticResolver 创建静态解析器。
func NewStaticResolver(owners map[string]string) *StaticResolver {
	normalized := make(map[string]string, len(owners))
	for addr, owner := range owners {
		normalized[normalizeAddress(addr)] = owner
	}
	return &StaticResolver{owners: normalized}
}

// ResolveOwner 查找收件地址对应的用户。
func (r *StaticResolver) ResolveOwner(address string) (string, error) {
	if owner, ok := r.owners[normalizeAddress(address)]; ok {
		return owner, nil
	}
	return "", fmt.Errorf("unknown recipient: %s", address)
}

// Backend 实现 go-smtp 的 Backend 接口
//
// 这是一个只接收邮件的 SMTP 入口：解析发件人、主题与正文链接数，
// 经打分器得到风险评分后交给 EmailService 入库并触发规则。
// 不支持对外发送，不会成为邮件中继。
type Backend struct {
	emails   *service.EmailService
	resolver OwnerResolver
	scorer   scoring.Scorer
	logger   *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(emails *service.EmailService, resolver OwnerResolver, scorer scoring.Scorer, logger *zap.Logger) *Backend {
	return &Backend{
		emails:   emails,
		resolver: resolver,
		scorer:   scorer,
		logger:   logger,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []recipient
}

type recipient struct {
	address string
	ownerID string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令，未登记的收件地址返回 550 拒绝。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	ownerID, err := s.backend.resolver.ResolveOwner(addr)
	if err != nil {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient not managed by this server",
		}
	}

	s.recipients = append(s.recipients, recipient{address: addr, ownerID: ownerID})
	return nil
}

// Data 处理邮件内容：解析、打分、入库。
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, maxMessageSize))
	if err != nil {
		return err
	}

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("parse message: %w", err)
	}

	subject := msg.Header.Get("Subject")
	fromAddr := s.fromAddress
	if parsed, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		fromAddr = normalizeAddress(parsed.Address)
	}

	body, _ := io.ReadAll(msg.Body)
	urlsCount := len(urlPattern.FindAll(body, -1))
	senderDomain := addressDomain(fromAddr)

	score := s.backend.scorer.Score(scoring.Input{
		FromAddr:  fromAddr,
		Domain:    senderDomain,
		Subject:   subject,
		Body:      string(body),
		URLsCount: urlsCount,
	})

	for _, rcpt := range s.recipients {
		result, err := s.backend.emails.Ingest(context.Background(), service.IngestEmailInput{
			OwnerID:   rcpt.ownerID,
			FromAddr:  fromAddr,
			Subject:   subject,
			Domain:    senderDomain,
			Score:     score,
			URLsCount: urlsCount,
		})
		if err != nil {
			s.backend.logger.Error("邮件入库失败",
				zap.String("recipient", rcpt.address),
				zap.Error(err))
			return err
		}
		s.backend.logger.Info("接收邮件",
			zap.String("emailId", result.Email.ID),
			zap.String("from", fromAddr),
			zap.String("recipient", rcpt.address),
			zap.Float64("score", score),
			zap.Int("urls", urlsCount))
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 结束会话。
func (s *session) Logout() error {
	return nil
}

// normalizeAddress 规整邮件地址：去角括号、转小写。
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}

// addressDomain 提取地址的域名部分。
func addressDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return ""
}
