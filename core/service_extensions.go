package core

import (
	"github.com/gocrud/nest/di"
)

// AddSingleton 将接口 T 绑定到实现 impl，并注册为单例
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddSingleton[IService](services, NewServiceImpl)
func AddSingleton[T any](s *ServiceCollection, impl any) {
	s.registry.ProvideType(di.TypeProvider{
		Provide: di.TypeOf[T](),
		UseType: impl,
		Options: di.ProviderOptions{
			Scope: di.ScopeSingleton,
		},
	})
}

// AddTransient 将接口 T 绑定到实现 impl，并注册为瞬态服务
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddTransient[IWorker](services, NewWorker)
func AddTransient[T any](s *ServiceCollection, impl any) {
	s.registry.ProvideType(di.TypeProvider{
		Provide: di.TypeOf[T](),
		UseType: impl,
		Options: di.ProviderOptions{
			Scope: di.ScopeTransient,
		},
	})
}

// AddRequest 将接口 T 绑定到实现 impl，并注册为请求作用域服务
// 每个请求作用域内至多创建一个实例，作用域结束后丢弃
//
// 示例:
//
//	core.AddRequest[IRequestContext](services, NewRequestContext)
func AddRequest[T any](s *ServiceCollection, impl any) {
	s.registry.ProvideType(di.TypeProvider{
		Provide: di.TypeOf[T](),
		UseType: impl,
		Options: di.ProviderOptions{
			Scope: di.ScopeRequest,
		},
	})
}
