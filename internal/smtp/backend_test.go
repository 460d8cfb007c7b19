package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/engine"
	"phishguard/backend/internal/monitoring"
	"phishguard/backend/internal/scoring"
	"phishguard/backend/internal/service"
	"phishguard/backend/internal/storage/memory"
)

var testMetrics = monitoring.NewMetrics()

type nullSink struct{}

func (nullSink) Enqueue(domain.Event) bool { return true }

func newBackend(t *testing.T) (*Backend, *memory.Store) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	executor := engine.NewActionExecutor(store, nullSink{}, logger)
	eng := engine.NewRuleEngine(store, engine.NewEvaluator(logger), executor, logger)
	emails := service.NewEmailService(store, eng, nullSink{}, testMetrics, logger, 60)
	resolver := NewStaticResolver(map[string]string{"triage@phishguard.example": "u1"})
	return NewBackend(emails, resolver, scoring.NewHeuristicScorer(), logger), store
}

const rawPhish = "From: Billing <billing@secure-pay.xyz>\r\n" +
	"To: triage@phishguard.example\r\n" +
	"Subject: Urgent: verify your payment account\r\n" +
	"\r\n" +
	"Click here http://evil.click/a and http://evil.click/b to verify.\r\n"

func TestSMTPIngestion(t *testing.T) {
	t.Run("未登记收件人被550拒绝", func(t *testing.T) {
		backend, _ := newBackend(t)
		sess, err := backend.NewSession(nil)
		require.NoError(t, err)

		require.NoError(t, sess.Mail("spammer@evil.click", nil))
		assert.Error(t, sess.Rcpt("<stranger@phishguard.example>", nil))
	})

	t.Run("接收解析并入库", func(t *testing.T) {
		backend, store := newBackend(t)
		sess, err := backend.NewSession(nil)
		require.NoError(t, err)

		require.NoError(t, sess.Mail("<Billing@Secure-Pay.xyz>", nil))
		require.NoError(t, sess.Rcpt("<Triage@PhishGuard.example>", nil))
		require.NoError(t, sess.Data(strings.NewReader(rawPhish)))

		emails, err := store.ListEmails("u1")
		require.NoError(t, err)
		require.Len(t, emails, 1)

		email := emails[0]
		assert.Equal(t, "billing@secure-pay.xyz", email.FromAddr)
		assert.Equal(t, "secure-pay.xyz", email.Domain)
		assert.Equal(t, "Urgent: verify your payment account", email.Subject)
		assert.Equal(t, 2, email.URLsCount)
		assert.Greater(t, email.Score, 50.0)
		assert.Equal(t, domain.EmailStatusPending, email.Status)
	})

	t.Run("Reset清空会话状态", func(t *testing.T) {
		backend, store := newBackend(t)
		sess, err := backend.NewSession(nil)
		require.NoError(t, err)

		require.NoError(t, sess.Mail("a@b.io", nil))
		require.NoError(t, sess.Rcpt("triage@phishguard.example", nil))
		sess.Reset()
		require.NoError(t, sess.Data(strings.NewReader(rawPhish)))

		emails, err := store.ListEmails("u1")
		require.NoError(t, err)
		assert.Empty(t, emails)
	})
}
