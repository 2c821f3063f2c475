package di

import (
	"fmt"
	"reflect"
)

// ProviderOptions 提供者的通用配置选项
type ProviderOptions struct {
	// Optional 为 true 时，该提供者自身的缺失依赖注入零值而非报错
	Optional bool

	// Scope 作用域，默认 ScopeSingleton
	Scope ScopeType

	// Priority 生命周期优先级，默认 0；数值越大越早初始化、越晚销毁
	Priority int

	// Name 命名实例限定符，同一类型可按名称注册多份
	Name string
}

// TypeProvider 类型提供者，将键绑定到实现类型或构造函数
//
// 示例：
//
//	registry.ProvideType(di.TypeProvider{
//		Provide: di.TypeOf[UserService](),
//		UseType: NewUserService,
//	})
type TypeProvider struct {
	// Provide 提供的键：reflect.Type、*Token[T] 或一个示例值
	Provide any

	// UseType 实现：构造函数（参数自动注入）或结构体指针（di 标签字段注入）
	UseType any

	Options ProviderOptions
}

// ValueProvider 值提供者，直接注册一个现成实例
type ValueProvider struct {
	Provide any
	Value   any
	Options ProviderOptions
}

// FactoryProvider 工厂提供者，通过工厂函数创建实例
//
// 工厂函数第一个返回值是实例，最后一个返回值可以是 error。
// 参数按 Deps 显式匹配；Deps 为空时按参数类型自动推断。
type FactoryProvider struct {
	Provide any
	Factory any
	Deps    []any
	Options ProviderOptions
}

// ExistingProvider 别名提供者，让一个键指向另一个已注册的键。
// 解析别名返回目标的实例，生命周期跟随目标。
type ExistingProvider struct {
	Provide  any
	Existing any
	Options  ProviderOptions
}

// optionalDep 标记一条可选依赖边。
type optionalDep struct {
	provide any
}

// Optional 将依赖标记为可选：目标未注册时注入零值而非失败。
// 用于 FactoryProvider.Deps 与 WithFactory 的依赖列表。
func Optional(provide any) any {
	return optionalDep{provide: provide}
}

// compileType 将 TypeProvider 编译为 Descriptor。
func compileType(p TypeProvider) (*Descriptor, error) {
	key, err := keyFor(p.Provide, p.Options.Name)
	if err != nil {
		return nil, err
	}
	if p.UseType == nil {
		return nil, fmt.Errorf("di: TypeProvider %s 缺少 UseType", key)
	}

	d := newDescriptor(key, p.Options)

	if t, ok := p.UseType.(reflect.Type); ok {
		d.kind = kindType
		d.implType = t
		return d, nil
	}

	implType := reflect.TypeOf(p.UseType)
	if implType.Kind() == reflect.Func {
		// 构造函数
		d.kind = kindFactory
		d.factory = p.UseType
		return d, nil
	}

	// 实现类型：按类型构建新实例并注入 di 标签字段
	d.kind = kindType
	d.implType = implType
	return d, nil
}

// compileValue 将 ValueProvider 编译为 Descriptor。
func compileValue(p ValueProvider) (*Descriptor, error) {
	provide := p.Provide
	if provide == nil {
		provide = p.Value
	}
	key, err := keyFor(provide, p.Options.Name)
	if err != nil {
		return nil, err
	}
	if p.Value == nil {
		return nil, fmt.Errorf("di: ValueProvider %s 缺少 Value", key)
	}

	d := newDescriptor(key, p.Options)
	d.kind = kindValue
	d.value = p.Value
	// 静态值没有构建过程，作用域固定为单例
	d.scope = ScopeSingleton
	return d, nil
}

// compileFactory 将 FactoryProvider 编译为 Descriptor。
func compileFactory(p FactoryProvider) (*Descriptor, error) {
	key, err := keyFor(p.Provide, p.Options.Name)
	if err != nil {
		return nil, err
	}
	if p.Factory == nil {
		return nil, fmt.Errorf("di: FactoryProvider %s 缺少 Factory", key)
	}
	if reflect.TypeOf(p.Factory).Kind() != reflect.Func {
		return nil, fmt.Errorf("di: FactoryProvider %s 的 Factory 必须是函数", key)
	}

	d := newDescriptor(key, p.Options)
	d.kind = kindFactory
	d.factory = p.Factory
	d.deps = p.Deps
	return d, nil
}

// compileExisting 将 ExistingProvider 编译为 Descriptor。
func compileExisting(p ExistingProvider) (*Descriptor, error) {
	key, err := keyFor(p.Provide, p.Options.Name)
	if err != nil {
		return nil, err
	}
	if p.Existing == nil {
		return nil, fmt.Errorf("di: ExistingProvider %s 缺少 Existing", key)
	}
	target, err := keyFor(p.Existing, "")
	if err != nil {
		return nil, err
	}

	d := newDescriptor(key, p.Options)
	d.kind = kindExisting
	d.target = target
	return d, nil
}

func newDescriptor(key serviceKey, opts ProviderOptions) *Descriptor {
	return &Descriptor{
		key:      key,
		scope:    opts.Scope,
		priority: opts.Priority,
		optional: opts.Optional,
	}
}
