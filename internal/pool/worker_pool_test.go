package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerPool(t *testing.T) {
	t.Run("已入队任务在Stop时全部执行", func(t *testing.T) {
		p := NewWorkerPool(2, 16, zap.NewNop())
		p.Start(context.Background())

		var done int64
		for i := 0; i < 10; i++ {
			require.True(t, p.TrySubmit(func() {
				atomic.AddInt64(&done, 1)
			}))
		}
		p.Stop()

		assert.Equal(t, int64(10), atomic.LoadInt64(&done))
	})

	t.Run("队列已满时TrySubmit返回false", func(t *testing.T) {
		p := NewWorkerPool(1, 1, zap.NewNop())
		// 未启动：队列容量1，第二个任务放不下

		assert.True(t, p.TrySubmit(func() {}))
		assert.False(t, p.TrySubmit(func() {}))
	})

	t.Run("Stop后提交不会panic", func(t *testing.T) {
		p := NewWorkerPool(1, 4, zap.NewNop())
		p.Start(context.Background())
		p.Stop()

		assert.False(t, p.TrySubmit(func() {}))
		p.Submit(func() {}) // 静默丢弃
		assert.Zero(t, p.QueueDepth())
	})

	t.Run("Stop可重复调用", func(t *testing.T) {
		p := NewWorkerPool(1, 4, zap.NewNop())
		p.Start(context.Background())
		p.Stop()
		p.Stop()
	})

	t.Run("并发提交与Stop不竞争关闭的队列", func(t *testing.T) {
		p := NewWorkerPool(2, 64, zap.NewNop())
		p.Start(context.Background())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					p.TrySubmit(func() {})
				}
			}()
		}
		p.Stop()
		wg.Wait()
	})

	t.Run("任务panic不影响工作协程", func(t *testing.T) {
		p := NewWorkerPool(1, 4, zap.NewNop())
		p.Start(context.Background())

		require.True(t, p.TrySubmit(func() { panic("boom") }))

		var ran int64
		require.True(t, p.TrySubmit(func() {
			atomic.AddInt64(&ran, 1)
		}))
		p.Stop()

		assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
	})
}
