package di

// registration 聚合 Option 的结果，由 Registry.Provide 编译成提供者。
type registration struct {
	provide  any
	scope    ScopeType
	priority int
	optional bool
	name     string
	value    any
	factory  any
	deps     []any
	implType any
	existing any
	hasValue bool
}

// Option 配置服务注册。
type Option func(*registration)

// WithScope 设置服务的作用域。
func WithScope(scope ScopeType) Option {
	return func(r *registration) {
		r.scope = scope
	}
}

// WithSingleton 将作用域设置为单例（默认）。
func WithSingleton() Option {
	return WithScope(ScopeSingleton)
}

// WithRequest 将作用域设置为请求级。
func WithRequest() Option {
	return WithScope(ScopeRequest)
}

// WithTransient 将作用域设置为瞬态。
func WithTransient() Option {
	return WithScope(ScopeTransient)
}

// WithValue 将现成实例注册为单例。
// 它已经创建完成，容器按原样返回。
func WithValue(v any) Option {
	return func(r *registration) {
		r.value = v
		r.hasValue = true
	}
}

// WithFactory 注册工厂函数来创建实例。
// deps 显式声明参数依赖；留空时按参数类型推断。
func WithFactory(fn any, deps ...any) Option {
	return func(r *registration) {
		r.factory = fn
		r.deps = deps
	}
}

// WithType 指定实现：构造函数或结构体指针原型。
func WithType(impl any) Option {
	return func(r *registration) {
		r.implType = impl
	}
}

// Use 指定接口的实现类型。
func Use[T any]() Option {
	return func(r *registration) {
		r.implType = TypeOf[T]()
	}
}

// WithToken 用符号令牌代替类型作为注册键。
func WithToken(token any) Option {
	return func(r *registration) {
		r.provide = token
	}
}

// WithExisting 将键注册为另一个已注册键的别名。
func WithExisting(target any) Option {
	return func(r *registration) {
		r.existing = target
	}
}

// WithName 设置命名实例限定符。
func WithName(name string) Option {
	return func(r *registration) {
		r.name = name
	}
}

// WithPriority 设置生命周期优先级，数值越大越早初始化。
func WithPriority(priority int) Option {
	return func(r *registration) {
		r.priority = priority
	}
}

// WithOptional 标记该提供者的缺失依赖注入零值而非报错。
func WithOptional() Option {
	return func(r *registration) {
		r.optional = true
	}
}

// Provide 用选项注册服务，是四种提供者之上的便捷入口。
// 注册属于启动期装配，配置错误直接 panic。
func (r *Registry) Provide(provide any, opts ...Option) {
	reg := registration{provide: provide, scope: ScopeSingleton}
	for _, opt := range opts {
		opt(&reg)
	}

	options := ProviderOptions{
		Optional: reg.optional,
		Scope:    reg.scope,
		Priority: reg.priority,
		Name:     reg.name,
	}

	switch {
	case reg.hasValue:
		r.ProvideValue(ValueProvider{Provide: reg.provide, Value: reg.value, Options: options})
	case reg.factory != nil:
		r.ProvideFactory(FactoryProvider{Provide: reg.provide, Factory: reg.factory, Deps: reg.deps, Options: options})
	case reg.existing != nil:
		r.ProvideExisting(ExistingProvider{Provide: reg.provide, Existing: reg.existing, Options: options})
	case reg.implType != nil:
		r.ProvideType(TypeProvider{Provide: reg.provide, UseType: reg.implType, Options: options})
	default:
		if _, isToken := reg.provide.(tokenRef); isToken {
			panic("di: 令牌注册必须通过 WithValue、WithFactory 或 WithType 指定实现")
		}
		// 没有指定实现时，键本身就是实现原型
		r.ProvideType(TypeProvider{Provide: reg.provide, UseType: reg.provide, Options: options})
	}
}
