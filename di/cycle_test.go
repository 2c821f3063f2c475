package di_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gocrud/nest/di"
)

type cycleA struct{}
type cycleB struct{}
type cycleC struct{}

// 三节点环：Build 报错并携带完整路径，任何构造函数都不执行
func TestCycleDetection(t *testing.T) {
	var constructions atomic.Int64

	registry := di.NewRegistry()
	di.Register[*cycleA](registry, di.WithFactory(func(b *cycleB) *cycleA {
		constructions.Add(1)
		return &cycleA{}
	}))
	di.Register[*cycleB](registry, di.WithFactory(func(c *cycleC) *cycleB {
		constructions.Add(1)
		return &cycleB{}
	}))
	di.Register[*cycleC](registry, di.WithFactory(func(a *cycleA) *cycleC {
		constructions.Add(1)
		return &cycleC{}
	}))

	container := di.NewContainer(registry)
	err := container.Build()
	if err == nil {
		t.Fatal("expected Build to fail on cycle")
	}
	if !errors.Is(err, di.ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}

	var cycle *di.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %T", err)
	}
	if len(cycle.Path) != 4 {
		t.Fatalf("expected full path A -> B -> C -> A, got %v", cycle.Path)
	}
	if cycle.Path[0] != cycle.Path[len(cycle.Path)-1] {
		t.Fatalf("cycle path must start and end at the same key: %v", cycle.Path)
	}
	if constructions.Load() != 0 {
		t.Fatalf("cycle must be reported before any construction, got %d constructions", constructions.Load())
	}
}

type selfLoop struct{}

// 自环同样被拒绝
func TestSelfCycle(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[*selfLoop](registry, di.WithFactory(func(s *selfLoop) *selfLoop {
		return &selfLoop{}
	}))

	container := di.NewContainer(registry)
	err := container.Build()
	if !errors.Is(err, di.ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency for self loop, got %v", err)
	}

	var cycle *di.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %T", err)
	}
	if len(cycle.Path) != 2 {
		t.Fatalf("expected path of length 2, got %v", cycle.Path)
	}
}

// 菱形依赖不是环
func TestDiamondIsNotCycle(t *testing.T) {
	type base struct{}
	type left struct{ B *base }
	type right struct{ B *base }
	type top struct {
		L *left
		R *right
	}

	registry := di.NewRegistry()
	di.Register[*base](registry, di.WithFactory(func() *base { return &base{} }))
	di.Register[*left](registry, di.WithFactory(func(b *base) *left { return &left{B: b} }))
	di.Register[*right](registry, di.WithFactory(func(b *base) *right { return &right{B: b} }))
	di.Register[*top](registry, di.WithFactory(func(l *left, r *right) *top {
		return &top{L: l, R: r}
	}))

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("diamond should build cleanly: %v", err)
	}

	value, err := di.Resolve[*top](container)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if value.L.B != value.R.B {
		t.Fatal("diamond tips should share the same singleton base")
	}
}
