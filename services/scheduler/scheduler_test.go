package scheduler

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core"
	logsvc "github.com/trezcool/shule/services/logger"
)

func newTestLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

func TestScheduler(t *testing.T) {
	var ok, failing, panicking, disabled int32
	s := New(newTestLogger(),
		Job{Name: "ok", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&ok, 1)
			return nil
		}},
		Job{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&failing, 1)
			return errors.New("boom")
		}},
		Job{Name: "panicking", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&panicking, 1)
			panic("boom")
		}},
		Job{Name: "disabled", Run: func(context.Context) error {
			atomic.AddInt32(&disabled, 1)
			return nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ok) >= 2 && atomic.LoadInt32(&failing) >= 2 && atomic.LoadInt32(&panicking) >= 2
	}, time.Second, time.Millisecond, "jobs keep running after errors and panics")

	cancel()
	s.Wait()
	runs := atomic.LoadInt32(&ok)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, runs, atomic.LoadInt32(&ok), "no run after the context is done")
	assert.Zero(t, atomic.LoadInt32(&disabled))
}
