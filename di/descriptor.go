package di

import (
	"reflect"
	"sync"
)

// ScopeType 定义了服务的生命周期。
type ScopeType int

const (
	// ScopeSingleton 每个容器创建一个实例（默认）。
	ScopeSingleton ScopeType = iota
	// ScopeRequest 每个请求作用域创建一个实例。
	ScopeRequest
	// ScopeTransient 每次解析创建一个新实例，不缓存。
	ScopeTransient
)

// String 返回作用域的字符串表示。
func (s ScopeType) String() string {
	switch s {
	case ScopeSingleton:
		return "singleton"
	case ScopeRequest:
		return "request"
	case ScopeTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// providerKind 定义实例的提供方式。
type providerKind int

const (
	kindType providerKind = iota
	kindValue
	kindFactory
	kindExisting
)

// instanceState 单例记录的构建状态。
type instanceState int

const (
	statePending instanceState = iota
	stateInitializing
	stateReady
	stateFailed
)

// dependency 一条依赖边。
type dependency struct {
	key      serviceKey
	optional bool
}

// fieldInjection 需要注入的结构体字段的元数据。
type fieldInjection struct {
	index int
	name  string
	dep   dependency
}

// injectionSchema 构建阶段预计算的注入元数据。
type injectionSchema struct {
	fields []fieldInjection // 结构体字段注入
	args   []dependency     // 工厂/构造函数参数注入
}

// record 单例实例记录。
// 构建在 mu 保护下进行，并发的首次解析收敛为一次构建；
// 失败的记录不缓存为就绪，后续解析可以重试。
type record struct {
	mu    sync.Mutex
	state instanceState
	value any
}

// Descriptor 包含一个已注册服务的全部元数据。
// 在发现阶段创建，Container.Build 之后不可变。
type Descriptor struct {
	key      serviceKey
	scope    ScopeType
	priority int

	// optional 为 true 时，该提供者自身的缺失依赖注入零值而非报错
	optional bool

	kind     providerKind
	value    any          // kindValue 的静态值
	factory  any          // kindFactory 的工厂/构造函数
	implType reflect.Type // kindType 的实现类型
	deps     []any        // 显式声明的工厂依赖（可含 Optional 包装）
	target   serviceKey   // kindExisting 的别名目标

	schema *injectionSchema
	rec    record
}

// Key 返回服务键的诊断表示。
func (d *Descriptor) Key() string {
	return d.key.String()
}

// Scope 返回服务的作用域。
func (d *Descriptor) Scope() ScopeType {
	return d.scope
}

// Priority 返回生命周期优先级，数值越大越早初始化、越晚销毁。
func (d *Descriptor) Priority() int {
	return d.priority
}
