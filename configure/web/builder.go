package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/nest/logging"
	"github.com/gocrud/nest/pipeline"
)

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger   logging.Logger
	addr     string
	port     int
	engine   *gin.Engine
	pipeline *pipeline.Pipeline
}

// NewBuilder 创建 Web 构建器
func NewBuilder(logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	// 设置 Gin 为发布模式（默认）
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())

	return &Builder{
		logger: logger,
		port:   8080,
		engine: engine,
	}
}

// UsePort 设置端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// UseAddr 设置完整监听地址（优先于 UsePort），如 "127.0.0.1:8080"
func (b *Builder) UseAddr(addr string) *Builder {
	b.addr = addr
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.GET(path, handlers...)
	return b
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.POST(path, handlers...)
	return b
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PUT(path, handlers...)
	return b
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.DELETE(path, handlers...)
	return b
}

// Patch 注册 PATCH 路由
func (b *Builder) Patch(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PATCH(path, handlers...)
	return b
}

// Any 注册任意方法路由
func (b *Builder) Any(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.Any(path, handlers...)
	return b
}

// Group 创建路由组
func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// Static 服务静态文件
func (b *Builder) Static(relativePath, root string) *Builder {
	b.engine.Static(relativePath, root)
	return b
}

// StaticFS 服务静态文件系统
func (b *Builder) StaticFS(relativePath string, fs http.FileSystem) *Builder {
	b.engine.StaticFS(relativePath, fs)
	return b
}

// StaticFile 服务单个静态文件
func (b *Builder) StaticFile(relativePath, filepath string) *Builder {
	b.engine.StaticFile(relativePath, filepath)
	return b
}

// LoadHTMLGlob 加载 HTML 模板（通配符）
func (b *Builder) LoadHTMLGlob(pattern string) *Builder {
	b.engine.LoadHTMLGlob(pattern)
	return b
}

// LoadHTMLFiles 加载 HTML 模板（文件列表）
func (b *Builder) LoadHTMLFiles(files ...string) *Builder {
	b.engine.LoadHTMLFiles(files...)
	return b
}

// NoRoute 处理 404
// 挂载到应用后未命中的请求先进入执行管线，这里注册的处理器只在管线外生效
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// NoMethod 处理 405
func (b *Builder) NoMethod(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoMethod(handlers...)
	return b
}

// SetMode 设置 Gin 模式
func (b *Builder) SetMode(mode string) *Builder {
	gin.SetMode(mode)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Build 构建 Web 主机
// 若绑定了执行管线，Gin 未命中的请求转交管线处理
func (b *Builder) Build() *Host {
	if b.pipeline != nil {
		b.engine.NoRoute(dispatchTo(b.pipeline))
	}

	addr := b.addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", b.port)
	}

	return &Host{
		addr:   addr,
		engine: b.engine,
		server: &http.Server{
			Addr:    addr,
			Handler: b.engine, // Gin Engine 实现了 http.Handler
		},
		logger: b.logger,
	}
}

// dispatchTo 把 Gin 请求转交执行管线
func dispatchTo(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := p.Handle(c.Request.Context(), requestFrom(c))
		render(c, resp)
	}
}

// requestFrom 从 Gin 上下文提取管线请求
func requestFrom(c *gin.Context) pipeline.Request {
	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	var body []byte
	if c.Request.Body != nil {
		if data, err := io.ReadAll(c.Request.Body); err == nil {
			body = data
		}
	}

	return pipeline.Request{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Query:   c.Request.URL.Query(),
		Headers: headers,
		Body:    body,
	}
}

// render 把管线响应写回 Gin
func render(c *gin.Context, resp pipeline.Response) {
	for key, value := range resp.Headers {
		c.Header(key, value)
	}

	switch body := resp.Body.(type) {
	case nil:
		c.Status(resp.Status)
	case []byte:
		contentType := resp.Headers["Content-Type"]
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(resp.Status, contentType, body)
	case string:
		c.String(resp.Status, "%s", body)
	default:
		c.JSON(resp.Status, body)
	}
}

// Host Web 主机
type Host struct {
	addr   string
	engine *gin.Engine
	server *http.Server
	logger logging.Logger

	mu    sync.Mutex
	bound string
}

// Start 启动 Web 主机，返回实际监听地址
// 先同步绑定端口（地址为 ":0" 时由系统分配），成功后在后台提供服务
func (h *Host) Start(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return "", fmt.Errorf("web: failed to listen on %s: %w", h.addr, err)
	}

	bound := ln.Addr().String()
	h.mu.Lock()
	h.bound = bound
	h.mu.Unlock()

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Web host error",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	h.logger.Info("Web host started",
		logging.Field{Key: "address", Value: bound})
	return bound, nil
}

// Stop 停止 Web 主机
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("Stopping web host")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown web host gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.Info("Web host stopped")
	return nil
}

// Address 获取实际监听地址，仅在 Start 后有效
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bound
}
