package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/nest/config"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/hosting"
	"github.com/gocrud/nest/lifecycle"
	"github.com/gocrud/nest/logging"
	"github.com/gocrud/nest/pipeline"
)

// Application 应用程序接口
type Application interface {
	// Run 运行应用程序并阻塞，收到退出信号后优雅关闭
	Run() error
	// RunAsync 运行应用程序并阻塞，ctx 取消等同于收到退出信号
	RunAsync(ctx context.Context) error
	// Start 启动应用程序，返回服务器的实际监听地址（没有服务器时为空）
	// 启动失败后调用 Stop 释放已启动的部分
	Start(ctx context.Context) (string, error)
	// Stop 优雅关闭应用程序，多次调用只执行一次
	Stop(ctx context.Context) error
	// Handle 把一个请求送入执行管线，与传输层无关
	Handle(ctx context.Context, req pipeline.Request) pipeline.Response

	Services() *di.Container
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() Environment
	Features() *FeatureCollection
	Address() string
	GetService(ptr any)
}

// application 应用程序实现
type application struct {
	container       *di.Container
	configuration   config.Reloadable
	configBuilder   *config.ConfigurationBuilder
	loggerFactory   logging.LoggerFactory
	logger          logging.Logger
	environment     Environment
	features        *FeatureCollection
	lifecycle       *lifecycle.Manager
	pipeline        *pipeline.Pipeline
	server          Server
	serviceManager  *hosting.HostedServiceManager
	cleanups        map[string]func()
	shutdownTimeout time.Duration

	stopCh    chan struct{}
	stopOnce  sync.Once
	stopErr   error
	errCh     <-chan error
	addr      string
	running   bool
	runCancel context.CancelFunc
	mu        sync.RWMutex
}

// Run 运行应用程序（阻塞）
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 运行应用程序，等待退出信号、外部 Stop、ctx 取消
// 或某个托管服务失败，然后在关闭超时内优雅关闭
func (a *application) RunAsync(ctx context.Context) error {
	if _, err := a.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		_ = a.Stop(shutdownCtx)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info("Received shutdown signal",
			logging.Field{Key: "signal", Value: sig.String()})
	case <-a.stopCh:
		a.logger.Info("Application stop requested")
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	case err := <-a.errCh:
		a.logger.Error("Hosted service failed, stopping application",
			logging.Field{Key: "error", Value: err.Error()})
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Start 启动应用程序
// 顺序：配置监听、单例预加载、生命周期启动（按优先级分层）、
// 托管服务、服务器。服务器就绪后把实际地址广播给监听钩子
func (a *application) Start(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return "", errors.New("application is already running")
	}
	a.running = true
	runCtx, cancel := context.WithCancel(context.Background())
	a.runCancel = cancel
	a.mu.Unlock()

	a.logger.Info("Starting application",
		logging.Field{Key: "environment", Value: a.environment.Name()})

	for _, source := range a.configBuilder.GetSources() {
		watchable, ok := source.(config.WatchableSource)
		if !ok {
			continue
		}
		if err := watchable.StartWatch(runCtx, a.reloadConfiguration); err != nil {
			a.logger.Warn("Failed to start config watch",
				logging.Field{Key: "source", Value: source.Name()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	instances, err := a.container.Preload()
	if err != nil {
		return "", fmt.Errorf("app: preload services: %w", err)
	}
	for _, instance := range instances {
		a.lifecycle.Observe(instance.Key, instance.Priority, instance.Value)
	}

	if err := a.lifecycle.Start(ctx); err != nil {
		return "", err
	}

	a.errCh = a.serviceManager.StartAll(runCtx)

	addr := ""
	if a.server != nil {
		addr, err = a.server.Start(ctx)
		if err != nil {
			return "", fmt.Errorf("app: start server: %w", err)
		}
		a.mu.Lock()
		a.addr = addr
		a.mu.Unlock()
		a.lifecycle.NotifyListen(ctx, addr)
	}

	if addr != "" {
		a.logger.Info("Application started",
			logging.Field{Key: "address", Value: addr})
	} else {
		a.logger.Info("Application started")
	}
	return addr, nil
}

// Stop 优雅关闭应用程序
// 重复调用只有第一次执行关闭，其余调用等待并返回同一个结果
func (a *application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		a.stopErr = a.shutdown(ctx)
	})
	return a.stopErr
}

// shutdown 按启动的逆序关闭：服务器、托管服务、生命周期钩子、
// 配置监听、清理函数。单步失败不阻止后续步骤，最后合并返回
func (a *application) shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})

	a.mu.Lock()
	cancel := a.runCancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var errs []error

	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			a.logger.Error("Failed to stop server",
				logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, err)
		}
	}

	if err := a.serviceManager.StopAll(ctx); err != nil {
		a.logger.Error("Failed to stop hosted services",
			logging.Field{Key: "error", Value: err.Error()})
		errs = append(errs, err)
	}
	a.serviceManager.Wait()

	if err := a.lifecycle.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, source := range a.configBuilder.GetSources() {
		if watchable, ok := source.(config.WatchableSource); ok {
			watchable.StopWatch()
		}
	}

	if len(a.cleanups) > 0 {
		a.logger.Info("Running cleanup functions",
			logging.Field{Key: "count", Value: len(a.cleanups)})
		for key, cleanup := range a.cleanups {
			a.logger.Debug("Running cleanup",
				logging.Field{Key: "key", Value: key})
			cleanup()
		}
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.logger.Info("Application stopped")

	// 日志工厂最后关闭，异步缓冲的日志在这里落盘
	if closer, ok := a.loggerFactory.(io.Closer); ok {
		_ = closer.Close()
	}

	return errors.Join(errs...)
}

// reloadConfiguration 配置源变更回调，触发一次整体重载
func (a *application) reloadConfiguration() {
	if err := a.configuration.Reload(); err != nil {
		a.logger.Error("Failed to reload configuration",
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	a.logger.Info("Configuration reloaded")
}

// Handle 把请求送入执行管线
func (a *application) Handle(ctx context.Context, req pipeline.Request) pipeline.Response {
	return a.pipeline.Handle(ctx, req)
}

// Services 获取服务容器
func (a *application) Services() *di.Container {
	return a.container
}

// Configuration 获取配置
func (a *application) Configuration() config.Configuration {
	return a.configuration
}

// Logger 获取日志记录器
func (a *application) Logger() logging.Logger {
	return a.logger
}

// Environment 获取环境
func (a *application) Environment() Environment {
	return a.environment
}

// Features 获取特性集合
func (a *application) Features() *FeatureCollection {
	return a.features
}

// Address 返回服务器的实际监听地址，未启动或没有服务器时为空
func (a *application) Address() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.addr
}

// GetService 获取服务实例（通过指针参数）
//
// 使用示例：
//
//	var myService *MyService
//	app.GetService(&myService)
func (a *application) GetService(ptr any) {
	ptrValue := reflect.ValueOf(ptr)
	if ptrValue.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("app: GetService argument must be a pointer, got %T", ptr))
	}

	elemValue := ptrValue.Elem()
	if !elemValue.CanSet() {
		panic("app: GetService argument must be settable")
	}

	targetType := elemValue.Type()
	instance, err := a.container.Resolve(targetType)
	if err != nil {
		panic(fmt.Sprintf("app: failed to get service %s: %v", targetType.String(), err))
	}

	elemValue.Set(reflect.ValueOf(instance))
}
