package di_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/nest/di"
)

type slowService struct {
	ID int64
}

// 并发首次解析收敛为一次构建
func TestSingletonConcurrentResolve(t *testing.T) {
	var constructions atomic.Int64

	registry := di.NewRegistry()
	di.Register[*slowService](registry, di.WithFactory(func() *slowService {
		time.Sleep(20 * time.Millisecond)
		return &slowService{ID: constructions.Add(1)}
	}))

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	const goroutines = 16
	results := make([]*slowService, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			value, err := di.Resolve[*slowService](container)
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			results[idx] = value
		}(i)
	}
	wg.Wait()

	if got := constructions.Load(); got != 1 {
		t.Fatalf("expected exactly 1 construction, got %d", got)
	}
	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent resolutions returned different instances")
		}
	}
}

// 构建失败不缓存，后续解析可以重试
func TestFailedSingletonIsRetryable(t *testing.T) {
	var attempts atomic.Int64
	transient := errors.New("connection refused")

	registry := di.NewRegistry()
	di.Register[*slowService](registry, di.WithFactory(func() (*slowService, error) {
		if attempts.Add(1) == 1 {
			return nil, transient
		}
		return &slowService{ID: attempts.Load()}, nil
	}))

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := di.Resolve[*slowService](container); !errors.Is(err, transient) {
		t.Fatalf("expected first resolution to fail with factory error, got %v", err)
	}

	value, err := di.Resolve[*slowService](container)
	if err != nil {
		t.Fatalf("retry should succeed, got %v", err)
	}
	if value.ID != 2 {
		t.Fatalf("expected second attempt to construct, got attempt %d", value.ID)
	}

	// 成功之后缓存生效
	again, _ := di.Resolve[*slowService](container)
	if again != value {
		t.Fatal("successful singleton should be cached")
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts total, got %d", attempts.Load())
	}
}

type tierLow struct{}
type tierMid struct{ Low *tierLow }
type tierHigh struct{ Mid *tierMid }

// 预加载按依赖顺序构建并带出优先级
func TestPreloadOrderAndPriority(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[*tierHigh](registry,
		di.WithFactory(func(m *tierMid) *tierHigh { return &tierHigh{Mid: m} }),
		di.WithPriority(10))
	di.Register[*tierMid](registry,
		di.WithFactory(func(l *tierLow) *tierMid { return &tierMid{Low: l} }),
		di.WithPriority(50))
	di.Register[*tierLow](registry,
		di.WithFactory(func() *tierLow { return &tierLow{} }),
		di.WithPriority(100))

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	instances, err := container.Preload()
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(instances))
	}

	pos := make(map[string]int, len(instances))
	prio := make(map[string]int, len(instances))
	for i, inst := range instances {
		pos[inst.Key] = i
		prio[inst.Key] = inst.Priority
	}

	low := di.TypeOf[*tierLow]().String()
	mid := di.TypeOf[*tierMid]().String()
	high := di.TypeOf[*tierHigh]().String()

	if !(pos[low] < pos[mid] && pos[mid] < pos[high]) {
		t.Fatalf("preload must build dependencies first, got order %v", instances)
	}
	if prio[low] != 100 || prio[mid] != 50 || prio[high] != 10 {
		t.Fatalf("priorities not carried through: %v", prio)
	}
}

// 瞬态服务不参与预加载缓存
func TestPreloadSkipsTransient(t *testing.T) {
	var constructions atomic.Int64

	registry := di.NewRegistry()
	di.Register[*slowService](registry,
		di.WithFactory(func() *slowService { return &slowService{ID: constructions.Add(1)} }),
		di.WithTransient())

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	instances, err := container.Preload()
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if len(instances) != 0 {
		t.Fatalf("transient services should not preload, got %v", instances)
	}
	if constructions.Load() != 0 {
		t.Fatal("preload must not construct transient services")
	}
}
