package mongodb_test

import (
	"testing"
	"time"

	"github.com/gocrud/nest/configure/mongodb"
	"github.com/gocrud/nest/core"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MockMongoService 模拟依赖 Mongo 客户端的服务
type MockMongoService struct {
	Store   *mongo.Client `di:"store"`
	Archive *mongo.Client `di:"archive,?"`
}

func TestMongoConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 驱动按需建连，构建应用不需要真实服务器
	builder.Configure(mongodb.Configure(func(b *mongodb.Builder) {
		b.Add("store", "mongodb://localhost:27017/?directConnection=true", func(o *mongodb.MongoOptions) {
			o.Timeout = time.Second
		})
	}))

	builder.Configure(func(ctx *core.BuildContext) {
		di.Register[*MockMongoService](ctx.Registry())
	})

	app := builder.Build()

	var svc *MockMongoService
	app.GetService(&svc)

	assert.NotNil(t, svc.Store, "Store client should be injected")
	assert.Nil(t, svc.Archive, "Archive client should be nil (optional and not configured)")

	store, err := di.ResolveNamed[*mongo.Client](app.Services(), "store")
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestMongoBuilder_Errors(t *testing.T) {
	logger := logging.NewLogger()

	// 缺少名称
	builder := mongodb.NewBuilder()
	builder.Add("", "mongodb://localhost:27017", nil)
	_, err := builder.Build(logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo client name is required")

	// 缺少 URI
	builder = mongodb.NewBuilder()
	builder.Add("test", "", nil)
	_, err = builder.Build(logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo uri is required")

	// 重复添加
	builder = mongodb.NewBuilder()
	builder.Add("dup", "mongodb://localhost:27017", nil)
	builder.Add("dup", "mongodb://localhost:27017", nil)
	_, err = builder.Build(logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already configured")
}

func TestMongoFactory_Register(t *testing.T) {
	factory := mongodb.NewMongoFactory()
	opts := mongodb.MongoOptions{
		Name:    "test",
		Uri:     "mongodb://localhost:27017/?directConnection=true",
		Timeout: 100 * time.Millisecond,
	}

	// 创建客户端不要求服务器在线
	require.NoError(t, factory.Register(opts))

	client, err := factory.Get("test")
	require.NoError(t, err)
	assert.NotNil(t, client)

	assert.Equal(t, []string{"test"}, factory.Names())

	// 再次注册同名应该失败
	err = factory.Register(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.NoError(t, factory.Close())
	assert.Empty(t, factory.Names())
}
