package core

import (
	"fmt"
	"reflect"

	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
)

// ServiceCollection 服务集合
// ConfigureServices 阶段的注册入口，包装容器注册表并记录
// 托管服务与控制器，二者在容器构建完成后由框架解析装配
type ServiceCollection struct {
	registry               *di.Registry
	logger                 logging.Logger
	hostedServiceProviders []any
	controllers            []any
}

// Registry 返回底层注册表，di.Register 系列泛型函数直接作用在它上面
func (s *ServiceCollection) Registry() *di.Registry {
	return s.registry
}

// Provide 注册一个提供者
func (s *ServiceCollection) Provide(provide any, opts ...di.Option) {
	s.registry.Provide(provide, opts...)
}

// AddHostedService 添加托管服务，接受实例或构造函数
// 服务同时登记进容器，可以注入其它依赖
func (s *ServiceCollection) AddHostedService(value any) {
	s.hostedServiceProviders = append(s.hostedServiceProviders, value)
}

// AddController 添加控制器，接受实例或构造函数
// 控制器在容器构建完成后解析并挂载路由
func (s *ServiceCollection) AddController(value any) {
	s.controllers = append(s.controllers, value)
}

// ensureRegistered 把构造函数或实例登记进注册表并返回解析类型
// 构造函数取第一个返回值的类型作为键；现成实例按值注册，
// 保留调用方已初始化的状态
func ensureRegistered(registry *di.Registry, item any) (reflect.Type, error) {
	if item == nil {
		return nil, fmt.Errorf("app: cannot register nil service")
	}

	value := reflect.ValueOf(item)
	if value.Kind() == reflect.Func {
		funcType := value.Type()
		if funcType.NumOut() == 0 {
			return nil, fmt.Errorf("app: constructor %T has no return value", item)
		}
		serviceType := funcType.Out(0)
		registry.ProvideType(di.TypeProvider{Provide: serviceType, UseType: item})
		return serviceType, nil
	}

	serviceType := value.Type()
	registry.ProvideValue(di.ValueProvider{Provide: serviceType, Value: item})
	return serviceType, nil
}
