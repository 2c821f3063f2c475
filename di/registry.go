package di

import (
	"sync"
	"sync/atomic"
)

// Registry 令牌注册表：键到提供者元数据的映射。
//
// 发现阶段可以并发注册；Container.Build 之后冻结，
// 稳态只读访问不再竞争写锁。
type Registry struct {
	mu     sync.RWMutex
	order  []serviceKey
	defs   map[serviceKey]*Descriptor
	frozen atomic.Bool
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[serviceKey]*Descriptor),
	}
}

// Register 注册一个描述符。
// 同一个键的重复注册是空操作，先注册的生效；冻结后的注册同样被忽略。
func (r *Registry) Register(d *Descriptor) {
	if d == nil || r.frozen.Load() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[d.key]; exists {
		return
	}
	r.defs[d.key] = d
	r.order = append(r.order, d.key)
}

// ProvideType 注册类型提供者。配置非法时 panic（注册属于启动期装配）。
func (r *Registry) ProvideType(p TypeProvider) {
	d, err := compileType(p)
	if err != nil {
		panic(err)
	}
	r.Register(d)
}

// ProvideValue 注册值提供者。
func (r *Registry) ProvideValue(p ValueProvider) {
	d, err := compileValue(p)
	if err != nil {
		panic(err)
	}
	r.Register(d)
}

// ProvideFactory 注册工厂提供者。
func (r *Registry) ProvideFactory(p FactoryProvider) {
	d, err := compileFactory(p)
	if err != nil {
		panic(err)
	}
	r.Register(d)
}

// ProvideExisting 注册别名提供者。
func (r *Registry) ProvideExisting(p ExistingProvider) {
	d, err := compileExisting(p)
	if err != nil {
		panic(err)
	}
	r.Register(d)
}

// Get 按键查找描述符。
func (r *Registry) Get(provide any) (*Descriptor, bool) {
	key, err := keyFor(provide, "")
	if err != nil {
		return nil, false
	}
	return r.lookup(key)
}

// GetNamed 按键与实例名称查找描述符。
func (r *Registry) GetNamed(provide any, name string) (*Descriptor, bool) {
	key, err := keyFor(provide, name)
	if err != nil {
		return nil, false
	}
	return r.lookup(key)
}

// All 按注册顺序返回所有描述符。
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.defs[key])
	}
	return out
}

// Len 返回注册的服务数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) lookup(key serviceKey) (*Descriptor, bool) {
	// 冻结后 map 不再写入，读取无需加锁
	if r.frozen.Load() {
		d, ok := r.defs[key]
		return d, ok
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[key]
	return d, ok
}

// freeze 冻结注册表。由 Container.Build 调用。
func (r *Registry) freeze() {
	r.frozen.Store(true)
}

func (r *Registry) keys() []serviceKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]serviceKey, len(r.order))
	copy(out, r.order)
	return out
}
