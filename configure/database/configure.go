package database

import (
	"fmt"

	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"gorm.io/gorm"
)

// Configure 返回数据库配置器
// 每个实例按名称注册进容器，名为 "default" 的实例同时按无名注册
// 使用示例: builder.Configure(database.Configure(func(b *database.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLoggerFactory().CreateLogger("Database"))
		if err != nil {
			panic(fmt.Sprintf("database: failed to build: %v", err))
		}
		if factory == nil {
			return
		}

		registry := ctx.Registry()
		di.Register[*DatabaseFactory](registry, di.WithValue(factory))

		factory.Each(func(name string, db *gorm.DB) {
			di.Register[*gorm.DB](registry, di.WithValue(db), di.WithName(name))
			ctx.GetLogger().Info("Database client registered to DI", logging.Field{Key: "name", Value: name})

			if name == "default" {
				di.Register[*gorm.DB](registry, di.WithValue(db))
				ctx.GetLogger().Info("Default database registered to DI (unnamed)")
			}
		})

		ctx.SetCleanup("database", func() {
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close databases",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
