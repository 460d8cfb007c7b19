package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"phishguard/backend/internal/domain"
	"phishguard/backend/internal/monitoring"
	"phishguard/backend/internal/pool"
)

// Config 投递器配置
type Config struct {
	Workers       int           // 投递协程数
	QueueSize     int           // 事件队列容量
	RatePerSecond float64       // 全局出站速率上限
	Burst         int           // 速率突发容量
	BackoffBase   time.Duration // 退避基准间隔
	BackoffCap    time.Duration // 退避间隔上限
}

// DefaultConfig 默认投递器配置
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     1024,
		RatePerSecond: 50,
		Burst:         100,
		BackoffBase:   time.Second,
		BackoffCap:    30 * time.Second,
	}
}

// Dispatcher 异步 Webhook 投递器
//
// 事件经有界队列流入工作协程，规则引擎在入队后立即返回。
// 每次 HTTP 尝试都写入投递台账，退避等待可被关停打断。
type Dispatcher struct {
	store   domain.Store
	pool    *pool.WorkerPool
	client  *http.Client
	limiter *rate.Limiter
	metrics *monitoring.Metrics
	logger  *zap.Logger
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher 创建投递器。
func NewDispatcher(store domain.Store, cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultConfig().BackoffCap
	}

	return &Dispatcher{
		store:   store,
		pool:    pool.NewWorkerPool(cfg.Workers, cfg.QueueSize, logger),
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start 启动投递工作协程。
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.pool.Start(d.ctx)
}

// Stop 停止投递器，排空已入队事件后返回。
func (d *Dispatcher) Stop() {
	d.pool.Stop()
	if d.cancel != nil {
		d.cancel()
	}
}

// Enqueue 将事件放入投递队列
//
// 非阻塞：队列已满时丢弃事件并返回 false，调用方不会被网络 I/O 拖住。
func (d *Dispatcher) Enqueue(event domain.Event) bool {
	ok := d.pool.TrySubmit(func() {
		d.process(event)
	})
	if ok {
		d.metrics.RecordEventEnqueued(string(event.Type))
	} else {
		d.metrics.RecordEventDropped()
	}
	d.metrics.UpdateQueueDepth(d.pool.QueueDepth())
	return ok
}

// QueueDepth 当前排队待投递的事件数
func (d *Dispatcher) QueueDepth() int {
	return d.pool.QueueDepth()
}

// QueueCapacity 事件队列容量
func (d *Dispatcher) QueueCapacity() int {
	return d.cfg.QueueSize
}

// process 将一条事件扇出到全部订阅该事件的 Webhooks。
func (d *Dispatcher) process(event domain.Event) {
	defer d.metrics.UpdateQueueDepth(d.pool.QueueDepth())

	webhooks, err := d.store.ListWebhooksByEvent(event.OwnerID, event.Type)
	if err != nil {
		d.logger.Error("订阅查询失败",
			zap.String("eventId", event.ID),
			zap.String("eventType", string(event.Type)),
			zap.Error(err))
		d.metrics.RecordError("subscription_lookup", "dispatcher")
		return
	}
	if len(webhooks) == 0 {
		return
	}

	body, err := json.Marshal(payload{
		ID:        event.ID,
		Type:      event.Type,
		Data:      event.Data,
		Timestamp: event.Timestamp.Unix(),
	})
	if err != nil {
		d.logger.Error("事件序列化失败", zap.String("eventId", event.ID), zap.Error(err))
		return
	}

	// 同一事件对每个订阅方独立投递，互不影响
	var g errgroup.Group
	for i := range webhooks {
		webhook := webhooks[i]
		g.Go(func() error {
			d.deliver(d.ctx, &webhook, &event, body)
			return nil
		})
	}
	g.Wait()
}

// payload 投递到订阅方的 JSON 体
type payload struct {
	ID        string                 `json:"id"`
	Type      domain.EventType       `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// deliver 带重试地把事件投递给单个 Webhook
//
// retry_count=N 表示最多 N+1 次尝试；任一次 2xx 即成功，
// 最后一次仍失败才计一次投递失败。
func (d *Dispatcher) deliver(ctx context.Context, webhook *domain.Webhook, event *domain.Event, body []byte) {
	digest := sha256.Sum256(body)
	maxAttempts := webhook.RetryCount + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if !d.sleep(ctx, d.backoff(attempt-1)) {
				return
			}
		}

		record := d.attempt(ctx, webhook, event, body, attempt)
		record.PayloadDigest = hex.EncodeToString(digest[:])
		if err := d.store.RecordDeliveryAttempt(record); err != nil {
			d.logger.Error("投递台账写入失败",
				zap.String("webhookId", webhook.ID),
				zap.Error(err))
		}
		d.metrics.RecordDelivery(record.Success, time.Duration(record.DurationMS)*time.Millisecond)

		if record.Success {
			if err := d.store.MarkDeliverySuccess(webhook.ID, record.CreatedAt); err != nil {
				d.logger.Error("成功计数更新失败", zap.String("webhookId", webhook.ID), zap.Error(err))
			}
			return
		}

		d.logger.Warn("投递尝试失败",
			zap.String("webhookId", webhook.ID),
			zap.String("eventId", event.ID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.Int("statusCode", record.StatusCode),
			zap.String("error", record.Error))
	}

	if err := d.store.MarkDeliveryFailure(webhook.ID); err != nil {
		d.logger.Error("失败计数更新失败", zap.String("webhookId", webhook.ID), zap.Error(err))
	}
	d.logger.Error("投递最终失败",
		zap.String("webhookId", webhook.ID),
		zap.String("eventId", event.ID),
		zap.Int("attempts", maxAttempts))
}

// attempt 执行单次 HTTP 投递尝试并返回台账记录。
func (d *Dispatcher) attempt(ctx context.Context, webhook *domain.Webhook, event *domain.Event, body []byte, attemptNumber int) *domain.DeliveryAttempt {
	record := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		WebhookID:     webhook.ID,
		EventID:       event.ID,
		EventType:     event.Type,
		AttemptNumber: attemptNumber,
		CreatedAt:     time.Now(),
	}

	if err := d.limiter.Wait(ctx); err != nil {
		record.Error = fmt.Sprintf("rate limiter: %v", err)
		return record
	}

	timeout := time.Duration(webhook.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		record.Error = fmt.Sprintf("build request: %v", err)
		record.DurationMS = time.Since(start).Milliseconds()
		return record
	}

	req.Header.Set("Content-Type", "application/json")
	if webhook.Secret != "" {
		req.Header.Set("X-Signature", Sign(webhook.Secret, body))
	}
	req.Header.Set("X-Webhook-Event", string(event.Type))
	req.Header.Set("X-Webhook-ID", event.ID)
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(attemptNumber))

	resp, err := d.client.Do(req)
	record.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		record.Error = fmt.Sprintf("send request: %v", err)
		return record
	}
	defer resp.Body.Close()

	record.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		record.Success = true
	} else {
		record.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return record
}

// Test 对指定 Webhook 发送一次测试事件
//
// 同步执行且不重试，结果写入台账但不影响成功/失败计数。
func (d *Dispatcher) Test(ctx context.Context, webhookID string) (*domain.DeliveryAttempt, error) {
	webhook, err := d.store.GetWebhook(webhookID)
	if err != nil {
		return nil, err
	}

	event := domain.Event{
		ID:      uuid.NewString(),
		OwnerID: webhook.OwnerID,
		Type:    domain.EventSystemAlert,
		Data: map[string]interface{}{
			"test":       true,
			"webhook_id": webhook.ID,
		},
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(payload{
		ID:        event.ID,
		Type:      event.Type,
		Data:      event.Data,
		Timestamp: event.Timestamp.Unix(),
	})
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(body)
	record := d.attempt(ctx, webhook, &event, body, 1)
	record.PayloadDigest = hex.EncodeToString(digest[:])
	if err := d.store.RecordDeliveryAttempt(record); err != nil {
		return nil, err
	}
	return record, nil
}

// backoff 指数退避间隔：base*2^(retry-1)，封顶后加 50% 抖动。
func (d *Dispatcher) backoff(retry int) time.Duration {
	interval := float64(d.cfg.BackoffBase) * math.Pow(2, float64(retry-1))
	if interval > float64(d.cfg.BackoffCap) {
		interval = float64(d.cfg.BackoffCap)
	}
	duration := time.Duration(interval)
	return duration/2 + time.Duration(rand.Int63n(int64(duration/2)+1))
}

// sleep 可被取消的等待，返回 false 表示上下文已结束。
func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Sign 计算投递体的 HMAC-SHA256 签名（十六进制）。
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
