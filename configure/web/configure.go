package web

import (
	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/logging"
)

// Configure 返回 Web 配置器，把 Gin 主机挂载为应用服务器
// Gin 未命中的请求进入执行管线，控制器路由由应用统一挂载
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx.GetLoggerFactory().CreateLogger("Web"))
		builder.pipeline = ctx.Pipeline()

		if options != nil {
			options(builder)
		}

		host := builder.Build()
		ctx.UseServer(host)

		// 其他配置器可以通过 Feature 拿到构建器继续注册原生路由
		ctx.Features().Set(builder)

		ctx.GetLogger().Info("Web host configured",
			logging.Field{Key: "address", Value: host.addr})
	}
}
