package redis

import (
	"fmt"

	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"github.com/redis/go-redis/v9"
)

// Configure 返回 Redis 配置器
// 每个客户端按名称注册进容器，名为 "default" 的客户端同时按无名注册，
// 工厂实现 OnStart，应用启动时统一探活
// 使用示例: builder.Configure(redis.Configure(func(b *redis.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLoggerFactory().CreateLogger("Redis"))
		if err != nil {
			panic(fmt.Sprintf("redis: failed to build clients: %v", err))
		}
		if factory == nil {
			return
		}

		registry := ctx.Registry()

		// 基础设施优先启动，探活先于业务服务
		di.RegisterValue[*RedisClientFactory](registry, factory, di.WithPriority(100))

		for _, name := range factory.Names() {
			client, _ := factory.Get(name)
			di.RegisterValue[*redis.Client](registry, client, di.WithName(name))
		}

		if defaultClient, err := factory.Get("default"); err == nil {
			di.RegisterValue[*redis.Client](registry, defaultClient)
		}

		ctx.SetCleanup("redis", func() {
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close redis clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})

		ctx.GetLogger().Info("Redis clients configured",
			logging.Field{Key: "clients", Value: len(factory.Names())})
	}
}
