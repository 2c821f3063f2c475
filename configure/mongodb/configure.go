package mongodb

import (
	"fmt"

	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Configure 返回 MongoDB 配置器
// 每个客户端按名称注册进容器，名为 "default" 的客户端同时按无名注册
// 使用示例: builder.Configure(mongodb.Configure(func(b *mongodb.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLoggerFactory().CreateLogger("Mongo"))
		if err != nil {
			panic(fmt.Sprintf("mongodb: failed to build clients: %v", err))
		}
		if factory == nil {
			return
		}

		registry := ctx.Registry()
		di.RegisterValue[*MongoFactory](registry, factory)

		for _, name := range factory.Names() {
			client, _ := factory.Get(name)
			di.RegisterValue[*mongo.Client](registry, client, di.WithName(name))
			ctx.GetLogger().Info("Mongo client registered to DI", logging.Field{Key: "name", Value: name})

			if name == "default" {
				di.RegisterValue[*mongo.Client](registry, client)
				ctx.GetLogger().Info("Default mongo client registered to DI (unnamed)")
			}
		}

		ctx.SetCleanup("mongodb", func() {
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close mongo clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
