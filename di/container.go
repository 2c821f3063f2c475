package di

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Container 依赖注入容器。
// 注册阶段通过 Registry 完成，Build 之后注册表冻结，只读解析是并发安全的。
type Container struct {
	registry *Registry
	order    []serviceKey
	built    atomic.Bool
}

// Instance 预加载阶段产出的单例实例。
type Instance struct {
	Key      string
	Value    any
	Priority int
}

// NewContainer 基于注册表创建容器。
func NewContainer(registry *Registry) *Container {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Container{registry: registry}
}

// New 创建带空注册表的容器。
func New() *Container {
	return NewContainer(NewRegistry())
}

// Registry 返回容器的注册表。
func (c *Container) Registry() *Registry {
	return c.registry
}

// Build 冻结注册表并验证依赖图。
// 缺失的必需依赖与静态循环在这里报错，早于任何构建动作。
func (c *Container) Build() error {
	if c.built.Load() {
		return errors.New("di: 容器已经构建过")
	}
	c.registry.freeze()

	order, err := newGraphBuilder(c.registry).buildOrder()
	if err != nil {
		return err
	}
	c.order = order
	c.built.Store(true)
	return nil
}

// Preload 按拓扑顺序急切构建全部单例。
// 返回的实例列表供宿主接生命周期钩子，顺序与构建顺序一致。
func (c *Container) Preload() ([]Instance, error) {
	if !c.built.Load() {
		return nil, errors.New("di: 容器尚未构建")
	}

	instances := make([]Instance, 0, len(c.order))
	for _, key := range c.order {
		def, _ := c.registry.lookup(key)
		if def.scope != ScopeSingleton || def.kind == kindExisting {
			continue
		}
		value, err := c.resolveKey(key, nil, &resolveChain{})
		if err != nil {
			return nil, err
		}
		instances = append(instances, Instance{
			Key:      key.String(),
			Value:    value,
			Priority: def.priority,
		})
	}
	return instances, nil
}

// Resolve 按类型或令牌解析服务。
func (c *Container) Resolve(provide any) (any, error) {
	return c.ResolveScoped(provide, nil)
}

// ResolveNamed 解析指定名称的服务。
func (c *Container) ResolveNamed(provide any, name string) (any, error) {
	if !c.built.Load() {
		return nil, errors.New("di: 容器尚未构建")
	}
	key, err := keyFor(provide, name)
	if err != nil {
		return nil, err
	}
	return c.resolveKey(key, nil, &resolveChain{})
}

// ResolveScoped 在给定请求作用域内解析服务。
// rs 为 nil 时等价于 Resolve，请求级服务会解析失败。
func (c *Container) ResolveScoped(provide any, rs *RequestScope) (any, error) {
	if !c.built.Load() {
		return nil, errors.New("di: 容器尚未构建")
	}
	key, err := keyFor(provide, "")
	if err != nil {
		return nil, err
	}
	return c.resolveKey(key, rs, &resolveChain{})
}

// Has 判断服务是否已注册。
func (c *Container) Has(provide any) bool {
	key, err := keyFor(provide, "")
	if err != nil {
		return false
	}
	_, exists := c.registry.lookup(key)
	return exists
}

// NewRequestScope 创建新的请求作用域。
func (c *Container) NewRequestScope() *RequestScope {
	return newRequestScope(c)
}

// resolveKey 解析单个服务键。
// 环检测先于构建：押入解析链时命中已有节点立即报错，不会执行任何构造。
func (c *Container) resolveKey(key serviceKey, rs *RequestScope, ch *resolveChain) (any, error) {
	def, exists := c.registry.lookup(key)
	if !exists {
		return nil, &MissingDependencyError{Key: key.String(), Requester: ch.requester()}
	}

	if err := ch.push(key); err != nil {
		return nil, err
	}
	defer ch.pop()

	// 别名直接转发到目标键
	if def.kind == kindExisting {
		return c.resolveKey(def.target, rs, ch)
	}

	switch def.scope {
	case ScopeSingleton:
		return c.resolveSingleton(def, ch)
	case ScopeRequest:
		if rs == nil {
			return nil, fmt.Errorf("di: 请求级服务 %s 需要请求作用域: %w", key, ErrScopeViolation)
		}
		return rs.getOrCreate(key, func() (any, error) {
			return c.createInstance(def, rs, ch)
		})
	default:
		return c.createInstance(def, rs, ch)
	}
}

// resolveSingleton 构建或返回缓存的单例。
// 记录锁保证同一个键的并发首次解析收敛为一次构建；
// 失败不缓存，记录回到待构建状态，后续解析可以重试。
func (c *Container) resolveSingleton(def *Descriptor, ch *resolveChain) (any, error) {
	rec := &def.rec
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state == stateReady {
		return rec.value, nil
	}

	// statePending 与 stateFailed 都会走构建，失败的记录允许重试
	rec.state = stateInitializing
	value, err := c.createInstance(def, nil, ch)
	if err != nil {
		rec.state = stateFailed
		return nil, err
	}

	rec.value = value
	rec.state = stateReady
	return value, nil
}
