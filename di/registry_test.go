package di_test

import (
	"testing"

	"github.com/gocrud/nest/di"
)

// 同一个键的重复注册是空操作，先注册的生效
func TestDuplicateRegistrationIsNoop(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[int](registry, di.WithValue(1))
	di.Register[int](registry, di.WithValue(2))

	if registry.Len() != 1 {
		t.Fatalf("expected 1 registration, got %d", registry.Len())
	}

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	value, err := di.Resolve[int](container)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if value != 1 {
		t.Fatalf("first registration must win, got %d", value)
	}
}

// Build 之后注册表冻结，后续注册被忽略
func TestRegistryFrozenAfterBuild(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[int](registry, di.WithValue(1))

	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	di.Register[string](registry, di.WithValue("late"))
	if registry.Len() != 1 {
		t.Fatalf("frozen registry accepted a registration, len=%d", registry.Len())
	}
	if container.Has(di.TypeOf[string]()) {
		t.Fatal("late registration should not be visible")
	}
}

// All 按注册顺序返回描述符
func TestRegistryOrder(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[int](registry, di.WithValue(1))
	di.Register[string](registry, di.WithValue("two"))
	di.Register[bool](registry, di.WithValue(true))

	all := registry.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(all))
	}
	if all[0].Key() != "int" || all[1].Key() != "string" || all[2].Key() != "bool" {
		t.Fatalf("registration order not preserved: %v, %v, %v",
			all[0].Key(), all[1].Key(), all[2].Key())
	}
}

// 描述符暴露作用域与优先级
func TestDescriptorMetadata(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[*ServiceA](registry,
		di.WithFactory(func() *ServiceA { return &ServiceA{} }),
		di.WithRequest(),
		di.WithPriority(42))

	def, ok := registry.Get(di.TypeOf[*ServiceA]())
	if !ok {
		t.Fatal("descriptor not found")
	}
	if def.Scope() != di.ScopeRequest {
		t.Fatalf("expected request scope, got %v", def.Scope())
	}
	if def.Priority() != 42 {
		t.Fatalf("expected priority 42, got %d", def.Priority())
	}
}

// 命名描述符按 {类型, 名称} 查找
func TestRegistryGetNamed(t *testing.T) {
	registry := di.NewRegistry()
	di.Register[string](registry, di.WithName("primary"), di.WithValue("a"))

	if _, ok := registry.Get(di.TypeOf[string]()); ok {
		t.Fatal("unnamed lookup should not see named registration")
	}
	if _, ok := registry.GetNamed(di.TypeOf[string](), "primary"); !ok {
		t.Fatal("named lookup failed")
	}
}
