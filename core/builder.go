package core

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gocrud/nest/config"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/hosting"
	"github.com/gocrud/nest/lifecycle"
	"github.com/gocrud/nest/logging"
	"github.com/gocrud/nest/pipeline"
)

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	environment          string
	configBuilder        *config.ConfigurationBuilder
	loggingBuilder       *logging.LoggingBuilder
	serviceConfigurators []func(*ServiceCollection)
	configurators        []Configurator
	shutdownTimeout      time.Duration
	mu                   sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		environment:          EnvDevelopment,
		configBuilder:        config.NewConfigurationBuilder(),
		loggingBuilder:       logging.NewLoggingBuilder(),
		serviceConfigurators: make([]func(*ServiceCollection), 0),
		configurators:        make([]Configurator, 0),
		shutdownTimeout:      30 * time.Second,
	}
}

// UseEnvironment 设置环境
func (b *ApplicationBuilder) UseEnvironment(env string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureServices 配置服务
func (b *ApplicationBuilder) ConfigureServices(configure func(*ServiceCollection)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.serviceConfigurators = append(b.serviceConfigurators, configure)
	}
	return b
}

// Configure 添加配置器（支持链式调用和可变参数）
// 接受任何 func(*BuildContext) 类型的函数
func (b *ApplicationBuilder) Configure(configurators ...any) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range configurators {
		switch fn := c.(type) {
		case Configurator:
			b.configurators = append(b.configurators, fn)
		case func(*BuildContext):
			b.configurators = append(b.configurators, fn)
		default:
			panic(fmt.Sprintf("app: configurator must be func(*BuildContext), got %T", c))
		}
	}

	return b
}

// AddExtension 添加应用程序扩展
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()

	if sc, ok := ext.(ServiceConfigurator); ok {
		b.serviceConfigurators = append(b.serviceConfigurators, sc.ConfigureServices)
	}
	if ac, ok := ext.(AppConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}

	return b
}

// AddOptions 注册配置选项（语法糖，简化配置选项注册）
// 使用示例: core.AddOptions[AppSetting](builder, "app")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ConfigureOptions[T](ctx, section)
	})
}

// AddTask 添加一个简单的后台任务
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ctx.AddHostedService(&functionalService{task: task})
	})
}

// functionalService 函数式托管服务
type functionalService struct {
	task func(ctx context.Context) error
}

func (f *functionalService) Start(ctx context.Context) error {
	return f.task(ctx)
}

func (f *functionalService) Stop(ctx context.Context) error {
	return nil
}

// Build 构建应用程序
// 装配顺序：配置、日志、核心服务注册、配置器、服务配置器、
// 容器构建、控制器挂载。装配错误说明程序写错了，直接 panic
func (b *ApplicationBuilder) Build() Application {
	b.mu.Lock()
	defer b.mu.Unlock()

	reloadable, err := b.configBuilder.BuildReloadable()
	if err != nil {
		panic(fmt.Sprintf("app: failed to build configuration: %v", err))
	}

	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")

	logger.Info("Building application",
		logging.Field{Key: "environment", Value: b.environment})

	container := di.New()
	registry := container.Registry()
	env := NewEnvironment(b.environment)

	// 注册核心服务，用户代码可以像普通依赖一样注入它们
	di.RegisterValue[config.Configuration](registry, reloadable)
	di.RegisterValue[config.Reloadable](registry, reloadable)
	di.RegisterValue[logging.LoggerFactory](registry, loggerFactory)
	di.RegisterValue[logging.Logger](registry, logger)
	di.RegisterValue[Environment](registry, env)
	di.RegisterValue[*di.Container](registry, container)

	pl := pipeline.New(container, loggerFactory.CreateLogger("Pipeline"))

	buildContext := &BuildContext{
		container:      container,
		configuration:  reloadable,
		loggerFactory:  loggerFactory,
		logger:         logger,
		environment:    env,
		features:       NewFeatureCollection(),
		pipeline:       pl,
		hostedServices: make([]hosting.HostedService, 0),
		cleanups:       make(map[string]func()),
	}

	for _, configurator := range b.configurators {
		configurator(buildContext)
	}

	services := &ServiceCollection{
		registry: registry,
		logger:   logger,
	}
	for _, configurator := range b.serviceConfigurators {
		configurator(services)
	}

	// 托管服务与控制器先登记类型，容器构建后再解析实例
	hostedTypes := registerProviders(registry, services.hostedServiceProviders)
	controllerTypes := registerProviders(registry, services.controllers)

	if err := container.Build(); err != nil {
		logger.Error("Failed to build DI container",
			logging.Field{Key: "error", Value: err.Error()})
		panic(fmt.Sprintf("app: failed to build DI container: %v", err))
	}

	logger.Debug("DI container built",
		logging.Field{Key: "services", Value: registry.Len()})

	hostedServices := append([]hosting.HostedService(nil), buildContext.hostedServices...)
	for _, serviceType := range hostedTypes {
		instance, err := container.Resolve(serviceType)
		if err != nil {
			panic(fmt.Sprintf("app: failed to resolve hosted service %s: %v", serviceType, err))
		}
		hs, ok := instance.(hosting.HostedService)
		if !ok {
			panic(fmt.Sprintf("app: service %s does not implement hosting.HostedService", serviceType))
		}
		hostedServices = append(hostedServices, hs)
	}

	router := NewRouter(pl)
	for _, controllerType := range controllerTypes {
		instance, err := container.Resolve(controllerType)
		if err != nil {
			panic(fmt.Sprintf("app: failed to resolve controller %s: %v", controllerType, err))
		}
		ctrl, ok := instance.(Controller)
		if !ok {
			panic(fmt.Sprintf("app: controller %s does not implement core.Controller", controllerType))
		}
		ctrl.MountRoutes(router)
	}
	if len(controllerTypes) > 0 {
		logger.Info("Controllers mounted",
			logging.Field{Key: "controllers", Value: len(controllerTypes)},
			logging.Field{Key: "routes", Value: len(pl.Routes())})
	}

	serviceManager := hosting.NewHostedServiceManager(loggerFactory.CreateLogger("Hosting"))
	for _, hs := range hostedServices {
		serviceManager.Add(hs)
	}

	return &application{
		container:       container,
		configuration:   reloadable,
		configBuilder:   b.configBuilder,
		loggerFactory:   loggerFactory,
		logger:          logger,
		environment:     env,
		features:        buildContext.features,
		lifecycle:       lifecycle.NewManager(loggerFactory.CreateLogger("Lifecycle")),
		pipeline:        pl,
		server:          buildContext.server,
		serviceManager:  serviceManager,
		cleanups:        buildContext.cleanups,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}
}

// registerProviders 批量登记构造函数或实例，返回各自的解析类型
func registerProviders(registry *di.Registry, providers []any) []reflect.Type {
	types := make([]reflect.Type, 0, len(providers))
	for _, provider := range providers {
		serviceType, err := ensureRegistered(registry, provider)
		if err != nil {
			panic(err)
		}
		types = append(types, serviceType)
	}
	return types
}
