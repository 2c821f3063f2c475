package nest

import (
	"context"

	"github.com/gocrud/nest/core"
)

// Run 用给定配置器构建应用并运行，阻塞到退出信号或停止请求
// 每个参数必须是 core.Configurator 或 func(*core.BuildContext)
func Run(configurators ...any) error {
	builder := core.NewApplicationBuilder()
	if len(configurators) > 0 {
		builder.Configure(configurators...)
	}
	return builder.Build().Run()
}

// RunContext 同 Run，上下文取消时触发优雅关闭
func RunContext(ctx context.Context, configurators ...any) error {
	builder := core.NewApplicationBuilder()
	if len(configurators) > 0 {
		builder.Configure(configurators...)
	}
	return builder.Build().RunAsync(ctx)
}
