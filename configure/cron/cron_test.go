package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickCounter 记录任务触发次数
type tickCounter struct {
	mu    sync.Mutex
	count int
}

func (c *tickCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *tickCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func builtContainer(t *testing.T, counter *tickCounter) *di.Container {
	container := di.New()
	di.RegisterValue[*tickCounter](container.Registry(), counter)
	require.NoError(t, container.Build())
	return container
}

func TestBuilderBuild(t *testing.T) {
	container := builtContainer(t, &tickCounter{})

	builder := NewBuilder().WithSeconds()
	builder.AddJob("* * * * * *", "plain", func() {})
	builder.AddJobWithDI("* * * * * *", "injected", func(c *tickCounter) {})

	svc, err := builder.build(container, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, svc.jobCount())
	assert.Equal(t, "cron", svc.Name())
}

func TestBuilderBuildErrors(t *testing.T) {
	container := builtContainer(t, &tickCounter{})

	// 无效的表达式
	builder := NewBuilder()
	builder.AddJob("not a spec", "bad", func() {})
	_, err := builder.build(container, logging.NewNopLogger())
	assert.Error(t, err)

	// 处理器不是函数
	builder = NewBuilder()
	builder.AddJobWithDI("* * * * *", "bad", "not a function")
	_, err = builder.build(container, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestServiceStartStop(t *testing.T) {
	svc := newService(logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}

	assert.NoError(t, svc.Stop(context.Background()))
}

func TestJobRunsWithInjectedDependencies(t *testing.T) {
	counter := &tickCounter{}
	container := builtContainer(t, counter)

	builder := NewBuilder().WithSeconds()
	builder.AddJobWithDI("* * * * * *", "tick", func(c *tickCounter) {
		c.inc()
	})

	svc, err := builder.build(container, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	// 每秒触发一次，最多等 3 秒
	deadline := time.Now().Add(3 * time.Second)
	for counter.value() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	require.NoError(t, svc.Stop(context.Background()))
	assert.Greater(t, counter.value(), 0, "job should have fired at least once")
}
