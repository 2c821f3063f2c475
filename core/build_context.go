package core

import (
	"sync"

	"github.com/gocrud/nest/config"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/hosting"
	"github.com/gocrud/nest/logging"
	"github.com/gocrud/nest/pipeline"
)

// Configurator 配置器函数类型
// 配置器用于扩展应用程序，可以注册服务、添加托管服务、挂载服务器等
type Configurator func(*BuildContext)

// BuildContext 构建上下文
// 提供给配置器的上下文环境，包含容器、配置、日志等核心组件
type BuildContext struct {
	container     *di.Container
	configuration config.Reloadable
	loggerFactory logging.LoggerFactory
	logger        logging.Logger
	environment   Environment
	features      *FeatureCollection
	pipeline      *pipeline.Pipeline

	server         Server
	hostedServices []hosting.HostedService
	cleanups       map[string]func()

	mu sync.RWMutex
}

// AddHostedService 添加托管服务实例
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostedServices = append(c.hostedServices, service)
}

// SetCleanup 设置资源清理函数，应用停止时执行
// 同一个键的清理函数后写覆盖先写
func (c *BuildContext) SetCleanup(key string, cleanup func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups[key] = cleanup
}

// UseServer 挂载服务器，应用启动的最后一步启动它
// 只支持一个服务器，重复挂载后写覆盖先写
func (c *BuildContext) UseServer(server Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.server = server
}

// Container 返回底层的 DI 容器
func (c *BuildContext) Container() *di.Container {
	return c.container
}

// Registry 返回容器的注册表
// 用于 di.Register[T](ctx.Registry(), ...) 直接注册服务
func (c *BuildContext) Registry() *di.Registry {
	return c.container.Registry()
}

// Pipeline 返回请求执行管线
// 配置器在这里挂全局中间件、守卫、拦截器与异常过滤器
func (c *BuildContext) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Features 返回特性集合
func (c *BuildContext) Features() *FeatureCollection {
	return c.features
}

// GetLogger 获取日志记录器
func (c *BuildContext) GetLogger() logging.Logger {
	return c.logger
}

// GetLoggerFactory 获取日志工厂，配置器用它创建自己分类的记录器
func (c *BuildContext) GetLoggerFactory() logging.LoggerFactory {
	return c.loggerFactory
}

// GetConfiguration 获取配置对象
func (c *BuildContext) GetConfiguration() config.Configuration {
	return c.configuration
}

// GetEnvironment 获取环境信息
func (c *BuildContext) GetEnvironment() Environment {
	return c.environment
}

// ConfigureOptions 配置选项模式（支持静态、快照和监听三种模式）
// T: 配置类型
// section: 配置节名称（例如 "app", "database"）
// 使用示例: core.ConfigureOptions[AppSetting](ctx, "app")
func ConfigureOptions[T any](ctx *BuildContext, section string) {
	cache := config.NewOptionsCache[T](ctx.configuration, section)
	registry := ctx.container.Registry()

	// Option[T] 单例，应用生命周期内不变
	di.Register[config.Option[T]](registry,
		di.WithValue(config.NewOption(cache.Get())),
		di.WithSingleton(),
	)

	// OptionMonitor[T] 单例，配置重载后读到新值
	di.Register[config.OptionMonitor[T]](registry,
		di.WithValue(config.NewOptionMonitor(cache)),
		di.WithSingleton(),
	)

	// OptionSnapshot[T] 请求作用域，持有作用域创建时的快照
	di.Register[config.OptionSnapshot[T]](registry,
		di.WithFactory(func() config.OptionSnapshot[T] {
			return config.NewOptionSnapshot(cache.Snapshot())
		}),
		di.WithRequest(),
	)

	ctx.logger.Debug("Configured options",
		logging.Field{Key: "type", Value: di.TypeOf[T]().String()},
		logging.Field{Key: "section", Value: section})
}
