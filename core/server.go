package core

import "context"

// Server 承载入站流量的服务器抽象
// 传输层（例如 HTTP）实现该接口并通过 BuildContext.UseServer 挂载，
// 应用启动的最后一步启动服务器并把实际监听地址广播给生命周期钩子
type Server interface {
	// Start 启动服务器并返回实际监听地址
	// 监听端口为 0 时返回的是系统分配的真实地址
	Start(ctx context.Context) (string, error)

	// Stop 优雅关闭服务器，等待处理中的请求结束
	Stop(ctx context.Context) error
}
