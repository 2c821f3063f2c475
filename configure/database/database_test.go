package database_test

import (
	"testing"

	"github.com/gocrud/nest/config"
	"github.com/gocrud/nest/configure/database"
	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

type MockDBService struct {
	Master *gorm.DB `di:"master"`
	Slave  *gorm.DB `di:"slave,?"`
}

// DBConfig 模拟用户定义的配置结构
type DBConfig struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func TestDatabaseConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 1. 配置内存配置源
	builder.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		cb.AddInMemory(map[string]any{
			"db": map[string]any{
				"master": map[string]any{
					"dsn":            "file::memory:?cache=shared",
					"max_open_conns": 5,
				},
			},
		})
	})

	// 2. 配置 Database (演示 config.Load 的使用)
	builder.Configure(database.Configure(func(b *database.Builder) {
		// 从构建上下文获取强类型配置
		dbConf, err := config.Load[DBConfig](b.Context().GetConfiguration(), "db.master")
		if err != nil {
			b.Add("config_error", nil, nil) // 触发 builder 错误
			return
		}

		b.Add("master", sqlite.Open(dbConf.DSN), func(o *database.DatabaseOptions) {
			o.MaxOpenConns = dbConf.MaxOpenConns
			o.AutoMigrate = []any{&User{}}
		})
	}))

	// 注册模拟服务
	builder.Configure(func(ctx *core.BuildContext) {
		di.Register[*MockDBService](ctx.Registry())
	})

	app := builder.Build()

	// 解析服务
	var svc *MockDBService
	app.GetService(&svc)

	if svc.Master == nil {
		t.Fatal("Master DB should not be nil")
	}
	if svc.Slave != nil {
		t.Error("Slave DB should be nil (optional and not configured)")
	}

	// 验证连接池配置生效
	sqlDB, _ := svc.Master.DB()
	stats := sqlDB.Stats()
	if stats.MaxOpenConnections != 5 {
		t.Errorf("Expected MaxOpenConns 5, got %d", stats.MaxOpenConnections)
	}

	// 验证迁移与写入
	if err := svc.Master.Create(&User{Name: "test"}).Error; err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
}

func TestDatabaseBuilder_Errors(t *testing.T) {
	logger := logging.NewLogger()
	builder := database.NewBuilder(nil)

	// 缺少 dialector
	builder.Add("invalid", nil, nil)

	// 重复添加
	builder.Add("dup", sqlite.Open("file::memory:"), nil)
	builder.Add("dup", sqlite.Open("file::memory:"), nil)

	_, err := builder.Build(logger)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	t.Logf("Got expected error: %v", err)
}
