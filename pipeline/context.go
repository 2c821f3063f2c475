package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gocrud/nest/di"
)

// Request 传输无关的请求描述，由传输层填充。
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// ExecutionContext 一次请求的执行上下文。
// 上下文沿管线显式传递，涵盖路由参数、请求作用域与响应累积。
type ExecutionContext struct {
	ctx     context.Context
	request Request
	params  map[string]string
	route   *Route
	scope   *di.RequestScope
	phase   Phase

	chain        []Middleware
	chainPos     int
	terminal     func() error
	terminalDone bool
	result       any

	mu       sync.Mutex
	data     map[string]any
	headers  map[string]string
	response *Response
}

func newExecutionContext(ctx context.Context, req Request, scope *di.RequestScope) *ExecutionContext {
	return &ExecutionContext{
		ctx:     ctx,
		request: req,
		scope:   scope,
		data:    make(map[string]any),
	}
}

// Context 返回请求的 context.Context。
func (c *ExecutionContext) Context() context.Context {
	return c.ctx
}

// Method 返回请求方法。
func (c *ExecutionContext) Method() string {
	return c.request.Method
}

// Path 返回请求路径。
func (c *ExecutionContext) Path() string {
	return c.request.Path
}

// Route 返回匹配到的路由，匹配失败阶段为 nil。
func (c *ExecutionContext) Route() *Route {
	return c.route
}

// Param 返回路径参数。
func (c *ExecutionContext) Param(name string) string {
	return c.params[name]
}

// Params 返回全部路径参数。
func (c *ExecutionContext) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Query 返回查询参数的第一个值。
func (c *ExecutionContext) Query(name string) string {
	return c.request.Query.Get(name)
}

// QueryValues 返回全部查询参数。
func (c *ExecutionContext) QueryValues() url.Values {
	return c.request.Query
}

// Header 返回请求头。
func (c *ExecutionContext) Header(name string) string {
	return c.request.Headers[name]
}

// Body 返回原始请求体。
func (c *ExecutionContext) Body() []byte {
	return c.request.Body
}

// BindBody 把请求体按 JSON 解析到 v。
func (c *ExecutionContext) BindBody(v any) error {
	if len(c.request.Body) == 0 {
		return fmt.Errorf("pipeline: request has no body")
	}
	if err := json.Unmarshal(c.request.Body, v); err != nil {
		return fmt.Errorf("pipeline: bind body: %w", err)
	}
	return nil
}

// Scope 返回本次请求的依赖注入作用域。
func (c *ExecutionContext) Scope() *di.RequestScope {
	return c.scope
}

// Resolve 在请求作用域内解析服务。
func (c *ExecutionContext) Resolve(provide any) (any, error) {
	return c.scope.Resolve(provide)
}

// Phase 返回请求当前所处的管线阶段。
func (c *ExecutionContext) Phase() Phase {
	return c.phase
}

// Set 在上下文里存一个值，守卫写入、处理器读取。
func (c *ExecutionContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Value 读取上下文里的值。
func (c *ExecutionContext) Value(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok
}

// SetHeader 累积响应头。
func (c *ExecutionContext) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	c.headers[key] = value
}

// SetResponse 直接写入响应，跳过结果归一化。
func (c *ExecutionContext) SetResponse(resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = resp
}

// Response 返回已写入的响应，没有则为 nil。
func (c *ExecutionContext) Response() *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// JSON 写入一个 JSON 响应。
func (c *ExecutionContext) JSON(status int, body any) {
	c.SetResponse(NewResponse(status, body))
}

// Next 继续执行管线的下一个环节。
// 中间件必须调用 Next 才会放行请求，最后一个中间件的 Next
// 进入拦截器与处理器阶段。
func (c *ExecutionContext) Next() error {
	pos := c.chainPos
	c.chainPos++
	if pos < len(c.chain) {
		return c.chain[pos].Use(c)
	}
	if c.terminalDone {
		return nil
	}
	c.terminalDone = true
	return c.terminal()
}

// responseHeaders 合并累积的响应头与响应自带的响应头，后者优先。
func (c *ExecutionContext) responseHeaders(resp Response) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.headers) == 0 {
		return resp.Headers
	}
	merged := make(map[string]string, len(c.headers)+len(resp.Headers))
	for k, v := range c.headers {
		merged[k] = v
	}
	for k, v := range resp.Headers {
		merged[k] = v
	}
	return merged
}
