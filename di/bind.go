package di

import "fmt"

// Register 以类型 T 为键注册服务。
// 使用示例: di.Register[UserService](registry, di.WithFactory(NewUserService))
func Register[T any](r *Registry, opts ...Option) {
	r.Provide(TypeOf[T](), opts...)
}

// Bind 将接口 T 绑定到实现。
// 使用示例: di.Bind[Logger](registry, &ConsoleLogger{})
func Bind[T any](r *Registry, impl any) {
	r.ProvideType(TypeProvider{
		Provide: TypeOf[T](),
		UseType: impl,
	})
}

// BindTo 将类型 T 注册为另一个已注册键的别名。
// 使用示例: di.BindTo[Reader](registry, di.TypeOf[*FileReader]())
func BindTo[T any](r *Registry, existing any) {
	r.ProvideExisting(ExistingProvider{
		Provide:  TypeOf[T](),
		Existing: existing,
	})
}

// RegisterValue 将现成实例注册为类型 T 的单例。
func RegisterValue[T any](r *Registry, value T, opts ...Option) {
	r.Provide(TypeOf[T](), append([]Option{WithValue(value)}, opts...)...)
}

// RegisterToken 用令牌注册服务。
// 使用示例: di.RegisterToken(registry, DBConnectionString, di.WithValue("postgres://..."))
func RegisterToken[T any](r *Registry, token *Token[T], opts ...Option) {
	r.Provide(token, opts...)
}

// Resolve 按类型 T 解析服务。
func Resolve[T any](c *Container) (T, error) {
	return typedValue[T](c.Resolve(TypeOf[T]()))
}

// ResolveNamed 按类型 T 与名称解析服务。
func ResolveNamed[T any](c *Container, name string) (T, error) {
	return typedValue[T](c.ResolveNamed(TypeOf[T](), name))
}

// ResolveToken 按令牌解析服务。
func ResolveToken[T any](c *Container, token *Token[T]) (T, error) {
	return typedValue[T](c.Resolve(token))
}

// ResolveScoped 在请求作用域内按类型 T 解析服务。
func ResolveScoped[T any](c *Container, rs *RequestScope) (T, error) {
	return typedValue[T](c.ResolveScoped(TypeOf[T](), rs))
}

// MustResolve 按类型 T 解析服务，失败时 panic。
// 只应在启动装配阶段使用。
func MustResolve[T any](c *Container) T {
	value, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return value
}

// ScopeValue 从请求作用域读取类型 T 的实例。
func ScopeValue[T any](rs *RequestScope) (T, bool) {
	var zero T
	value, ok := rs.Get(TypeOf[T]())
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func typedValue[T any](value any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("di: 实例类型 %T 与请求的类型不匹配", value)
	}
	return typed, nil
}
