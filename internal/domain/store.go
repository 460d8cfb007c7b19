package domain

// Store 聚合所有存储接口
type Store interface {
	EmailRepository
	ListRepository
	RuleRepository
	WebhookRepository

	// Close 关闭存储连接
	Close() error

	// Health 健康检查
	Health() error
}
