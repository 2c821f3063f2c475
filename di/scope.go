package di

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

var scopeSeq atomic.Uint64

// RequestScope 请求作用域，承载一次请求内共享的实例。
// 作用域沿调用链显式传递，一个作用域只允许进入一次。
type RequestScope struct {
	container *Container
	id        uint64

	mu        sync.Mutex
	instances map[serviceKey]any
	order     []serviceKey
	active    bool
	released  bool
}

func newRequestScope(c *Container) *RequestScope {
	return &RequestScope{
		container: c,
		id:        scopeSeq.Add(1),
		instances: make(map[serviceKey]any),
	}
}

// ID 作用域的进程内唯一编号，便于日志关联。
func (rs *RequestScope) ID() uint64 {
	return rs.id
}

// Run 进入作用域执行 fn，退出时无条件释放。
// fn panic 时同样会释放，随后恐慌继续向上传播。
// 重复进入或复用已释放的作用域返回 ErrScopeViolation。
func (rs *RequestScope) Run(fn func() error) error {
	rs.mu.Lock()
	if rs.active {
		rs.mu.Unlock()
		return fmt.Errorf("di: 作用域 %d 不允许嵌套进入: %w", rs.id, ErrScopeViolation)
	}
	if rs.released {
		rs.mu.Unlock()
		return fmt.Errorf("di: 作用域 %d 已释放，不能复用: %w", rs.id, ErrScopeViolation)
	}
	rs.active = true
	rs.mu.Unlock()

	defer rs.release()
	return fn()
}

// Resolve 在本作用域内解析服务。
func (rs *RequestScope) Resolve(provide any) (any, error) {
	return rs.container.ResolveScoped(provide, rs)
}

// Set 向作用域写入实例，只在作用域激活期间允许。
func (rs *RequestScope) Set(provide any, value any) error {
	key, err := keyFor(provide, "")
	if err != nil {
		return err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.active {
		return fmt.Errorf("di: 作用域 %d 未激活，不能写入 %s: %w", rs.id, key, ErrScopeViolation)
	}
	if _, exists := rs.instances[key]; !exists {
		rs.order = append(rs.order, key)
	}
	rs.instances[key] = value
	return nil
}

// Get 读取作用域内已有的实例。
func (rs *RequestScope) Get(provide any) (any, bool) {
	key, err := keyFor(provide, "")
	if err != nil {
		return nil, false
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	value, ok := rs.instances[key]
	return value, ok
}

// Has 判断作用域内是否已有实例。
func (rs *RequestScope) Has(provide any) bool {
	_, ok := rs.Get(provide)
	return ok
}

// getOrCreate 返回作用域内的实例，不存在时构建。
// 构建在锁外进行，同一次请求是单个逻辑流，链检测兜住作用域内循环。
func (rs *RequestScope) getOrCreate(key serviceKey, build func() (any, error)) (any, error) {
	rs.mu.Lock()
	if !rs.active {
		rs.mu.Unlock()
		return nil, fmt.Errorf("di: 作用域 %d 未激活，不能解析 %s: %w", rs.id, key, ErrScopeViolation)
	}
	if value, ok := rs.instances[key]; ok {
		rs.mu.Unlock()
		return value, nil
	}
	rs.mu.Unlock()

	value, err := build()
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if existing, ok := rs.instances[key]; ok {
		return existing, nil
	}
	rs.instances[key] = value
	rs.order = append(rs.order, key)
	return value, nil
}

// release 释放作用域：按创建顺序的逆序关闭实现了 io.Closer 的实例。
// 单个 Close 的失败或恐慌不影响其余实例的释放。
func (rs *RequestScope) release() {
	rs.mu.Lock()
	if rs.released {
		rs.mu.Unlock()
		return
	}
	rs.released = true
	rs.active = false
	instances := rs.instances
	order := rs.order
	rs.instances = nil
	rs.order = nil
	rs.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if closer, ok := instances[order[i]].(io.Closer); ok {
			func() {
				defer func() { _ = recover() }()
				_ = closer.Close()
			}()
		}
	}
}
