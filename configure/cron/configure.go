package cron

import (
	"fmt"

	"github.com/gocrud/nest/core"
)

// Configure 返回 Cron 配置器，任务调度器作为托管服务随应用启停
// 使用示例: builder.Configure(cron.Configure(func(b *cron.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		cronSvc, err := builder.build(ctx.Container(), ctx.GetLoggerFactory().CreateLogger("Cron"))
		if err != nil {
			panic(fmt.Sprintf("cron: failed to build service: %v", err))
		}

		ctx.AddHostedService(cronSvc)

		ctx.GetLogger().Info("Cron service configured")
	}
}
