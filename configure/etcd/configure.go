package etcd

import (
	"fmt"

	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Configure 返回 Etcd 配置器
// 每个客户端按名称注册进容器，名为 "default" 的客户端同时按无名注册
// 使用示例: builder.Configure(etcd.Configure(func(b *etcd.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLoggerFactory().CreateLogger("Etcd"))
		if err != nil {
			panic(fmt.Sprintf("etcd: failed to build clients: %v", err))
		}
		if factory == nil {
			return
		}

		registry := ctx.Registry()
		di.RegisterValue[*EtcdClientFactory](registry, factory)

		for _, name := range factory.Names() {
			client, _ := factory.Get(name)
			di.RegisterValue[*clientv3.Client](registry, client, di.WithName(name))
		}

		if defaultClient, err := factory.Get("default"); err == nil {
			di.RegisterValue[*clientv3.Client](registry, defaultClient)
		}

		ctx.SetCleanup("etcd", func() {
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close etcd clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})

		ctx.GetLogger().Info("Etcd clients configured",
			logging.Field{Key: "clients", Value: len(factory.Names())})
	}
}
