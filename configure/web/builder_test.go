package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------- Helper ----------------

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	container := di.New()
	require.NoError(t, container.Build())
	return pipeline.New(container, nil)
}

func addRoute(t *testing.T, p *pipeline.Pipeline, method, path string, handler pipeline.HandlerFunc) {
	require.NoError(t, p.AddRoute(pipeline.Route{Method: method, Path: path, Handler: handler}))
}

func doRequest(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	engine.ServeHTTP(w, req)
	return w
}

// ---------------- Tests ----------------

func TestBuilderDispatchesToPipeline(t *testing.T) {
	p := newTestPipeline(t)
	addRoute(t, p, "GET", "/greet/:name", func(ec *pipeline.ExecutionContext) (any, error) {
		return map[string]any{
			"name":  ec.Param("name"),
			"lang":  ec.Query("lang"),
			"trace": ec.Header("X-Trace-Id"),
		}, nil
	})

	builder := NewBuilder(nil)
	builder.pipeline = p
	builder.Build()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/greet/go?lang=zh", nil)
	req.Header.Set("X-Trace-Id", "t-42")
	builder.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), `"name":"go"`)
	assert.Contains(t, w.Body.String(), `"lang":"zh"`)
	assert.Contains(t, w.Body.String(), `"trace":"t-42"`)
}

func TestBuilderRendersResponseKinds(t *testing.T) {
	p := newTestPipeline(t)
	addRoute(t, p, "GET", "/text", func(ec *pipeline.ExecutionContext) (any, error) {
		return "plain text", nil
	})
	addRoute(t, p, "GET", "/bytes", func(ec *pipeline.ExecutionContext) (any, error) {
		return []byte("raw-bytes"), nil
	})
	addRoute(t, p, "GET", "/empty", func(ec *pipeline.ExecutionContext) (any, error) {
		return nil, nil
	})
	addRoute(t, p, "GET", "/status", func(ec *pipeline.ExecutionContext) (any, error) {
		return pipeline.Created(map[string]string{"id": "1"}), nil
	})

	builder := NewBuilder(nil)
	builder.pipeline = p
	builder.Build()
	engine := builder.Engine()

	// 字符串原样写出
	w := doRequest(engine, "GET", "/text")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plain text", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	// 字节流默认按二进制写出
	w = doRequest(engine, "GET", "/bytes")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "raw-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/octet-stream")

	// 无结果时只有状态码
	w = doRequest(engine, "GET", "/empty")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	// *Response 直接采用其状态码
	w = doRequest(engine, "GET", "/status")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"1"`)
}

func TestNativeRoutesBeforePipeline(t *testing.T) {
	p := newTestPipeline(t)
	addRoute(t, p, "GET", "/who", func(ec *pipeline.ExecutionContext) (any, error) {
		return "from-pipeline", nil
	})

	builder := NewBuilder(nil)
	builder.pipeline = p
	builder.Get("/who", func(c *gin.Context) {
		c.String(http.StatusOK, "from-gin")
	})
	builder.Build()

	// Gin 命中的路由不进管线
	w := doRequest(builder.Engine(), "GET", "/who")
	assert.Equal(t, "from-gin", w.Body.String())

	// 未命中的路径由管线给出 404
	w = doRequest(builder.Engine(), "GET", "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not Found")
}

func TestBuildAddress(t *testing.T) {
	host := NewBuilder(nil).UsePort(9090).Build()
	assert.Equal(t, ":9090", host.addr)

	// UseAddr 优先于 UsePort
	host = NewBuilder(nil).UsePort(9090).UseAddr("127.0.0.1:0").Build()
	assert.Equal(t, "127.0.0.1:0", host.addr)
}

func TestHostStartStop(t *testing.T) {
	builder := NewBuilder(nil).UseAddr("127.0.0.1:0")
	builder.Get("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	host := builder.Build()

	ctx := context.Background()
	addr, err := host.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	// ":0" 已被替换为系统分配的端口
	assert.False(t, strings.HasSuffix(addr, ":0"))
	assert.Equal(t, addr, host.Address())

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, host.Stop(ctx))

	// 停止后连接被拒绝
	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}
