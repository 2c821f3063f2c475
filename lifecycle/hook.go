package lifecycle

import "context"

// Hook 一组生命周期回调。
// Priority 数值越大越早初始化、越晚销毁；同一优先级并发执行。
type Hook struct {
	Name     string
	Priority int

	// OnStart 启动回调。为 nil 时视为启动已完成。
	OnStart func(ctx context.Context) error

	// OnStop 停止回调，按初始化的逆序执行。
	OnStop func(ctx context.Context) error

	// OnListen 监听回调，服务器绑定地址之后收到实际地址。
	// 返回的错误只记录日志，不影响启动。
	OnListen func(ctx context.Context, addr string) error
}

// Initializer 由需要启动初始化的服务实现。
type Initializer interface {
	OnStart(ctx context.Context) error
}

// Shutdowner 由需要优雅关闭的服务实现。
type Shutdowner interface {
	OnStop(ctx context.Context) error
}

// ListenAware 由关心监听地址的服务实现，比如注册到服务发现。
type ListenAware interface {
	OnListen(ctx context.Context, addr string) error
}

// hookFor 从实例的接口实现收集钩子，一个接口都没实现时返回 false。
func hookFor(name string, priority int, instance any) (Hook, bool) {
	hook := Hook{Name: name, Priority: priority}
	matched := false

	if init, ok := instance.(Initializer); ok {
		hook.OnStart = init.OnStart
		matched = true
	}
	if shut, ok := instance.(Shutdowner); ok {
		hook.OnStop = shut.OnStop
		matched = true
	}
	if listen, ok := instance.(ListenAware); ok {
		hook.OnListen = listen.OnListen
		matched = true
	}
	return hook, matched
}
