package core

import (
	"fmt"
	"strings"

	"github.com/gocrud/nest/pipeline"
)

// Controller 控制器接口
// 控制器作为普通服务注册进容器，容器构建完成后由框架
// 解析实例并调用 MountRoutes 把路由挂载到执行管线
type Controller interface {
	MountRoutes(r *Router)
}

// RouteOption 单条路由的可选配置
type RouteOption func(*pipeline.Route)

// WithRouteName 设置路由的诊断名称
func WithRouteName(name string) RouteOption {
	return func(r *pipeline.Route) {
		r.Name = name
	}
}

// WithGuards 追加路由级守卫
func WithGuards(guards ...pipeline.Guard) RouteOption {
	return func(r *pipeline.Route) {
		r.Guards = append(r.Guards, guards...)
	}
}

// WithMiddlewares 追加路由级中间件
func WithMiddlewares(middlewares ...pipeline.Middleware) RouteOption {
	return func(r *pipeline.Route) {
		r.Middlewares = append(r.Middlewares, middlewares...)
	}
}

// WithInterceptors 追加路由级拦截器
func WithInterceptors(interceptors ...pipeline.Interceptor) RouteOption {
	return func(r *pipeline.Route) {
		r.Interceptors = append(r.Interceptors, interceptors...)
	}
}

// Router 路由注册器
// 控制器通过它向管线路由表登记处理器，Group 产生的子注册器
// 继承父级的路径前缀与路由级环节
type Router struct {
	pipeline     *pipeline.Pipeline
	prefix       string
	guards       []pipeline.Guard
	middlewares  []pipeline.Middleware
	interceptors []pipeline.Interceptor
}

// NewRouter 创建挂载到指定管线的路由注册器
func NewRouter(p *pipeline.Pipeline) *Router {
	return &Router{pipeline: p}
}

// Group 创建带路径前缀的子注册器
func (r *Router) Group(prefix string) *Router {
	return &Router{
		pipeline:     r.pipeline,
		prefix:       joinPath(r.prefix, prefix),
		guards:       append([]pipeline.Guard(nil), r.guards...),
		middlewares:  append([]pipeline.Middleware(nil), r.middlewares...),
		interceptors: append([]pipeline.Interceptor(nil), r.interceptors...),
	}
}

// UseGuard 为之后注册的路由追加守卫
func (r *Router) UseGuard(guards ...pipeline.Guard) *Router {
	r.guards = append(r.guards, guards...)
	return r
}

// UseMiddleware 为之后注册的路由追加中间件
func (r *Router) UseMiddleware(middlewares ...pipeline.Middleware) *Router {
	r.middlewares = append(r.middlewares, middlewares...)
	return r
}

// UseInterceptor 为之后注册的路由追加拦截器
func (r *Router) UseInterceptor(interceptors ...pipeline.Interceptor) *Router {
	r.interceptors = append(r.interceptors, interceptors...)
	return r
}

// Handle 注册一条路由。路由配置非法时 panic，注册属于启动期装配
func (r *Router) Handle(method, path string, handler pipeline.HandlerFunc, opts ...RouteOption) *Router {
	route := pipeline.Route{
		Method:       method,
		Path:         joinPath(r.prefix, path),
		Handler:      handler,
		Guards:       append([]pipeline.Guard(nil), r.guards...),
		Middlewares:  append([]pipeline.Middleware(nil), r.middlewares...),
		Interceptors: append([]pipeline.Interceptor(nil), r.interceptors...),
	}
	for _, opt := range opts {
		opt(&route)
	}
	if err := r.pipeline.AddRoute(route); err != nil {
		panic(fmt.Sprintf("app: %v", err))
	}
	return r
}

// Get 注册 GET 路由
func (r *Router) Get(path string, handler pipeline.HandlerFunc, opts ...RouteOption) *Router {
	return r.Handle("GET", path, handler, opts...)
}

// Post 注册 POST 路由
func (r *Router) Post(path string, handler pipeline.HandlerFunc, opts ...RouteOption) *Router {
	return r.Handle("POST", path, handler, opts...)
}

// Put 注册 PUT 路由
func (r *Router) Put(path string, handler pipeline.HandlerFunc, opts ...RouteOption) *Router {
	return r.Handle("PUT", path, handler, opts...)
}

// Delete 注册 DELETE 路由
func (r *Router) Delete(path string, handler pipeline.HandlerFunc, opts ...RouteOption) *Router {
	return r.Handle("DELETE", path, handler, opts...)
}

// Patch 注册 PATCH 路由
func (r *Router) Patch(path string, handler pipeline.HandlerFunc, opts ...RouteOption) *Router {
	return r.Handle("PATCH", path, handler, opts...)
}

// joinPath 拼接路径前缀与相对路径，保证以 / 开头且无重复斜杠
func joinPath(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	joined := prefix + path
	if joined == "" {
		return "/"
	}
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}
