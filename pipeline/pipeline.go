package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
)

// Pipeline 请求执行管线。
//
// 每个请求按固定阶段流转：路由匹配、守卫检查、中间件链、
// 拦截器环绕的处理器调用、响应归一化；任何阶段出错都转入
// 异常处理，由过滤器或兜底响应收尾。管线永远返回响应，
// 不向传输层抛出错误或恐慌。
type Pipeline struct {
	container    *di.Container
	logger       logging.Logger
	table        *Table
	guards       []Guard
	middlewares  []Middleware
	interceptors []Interceptor
	filters      *filterSet
}

// New 创建请求管线。
func New(container *di.Container, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{
		container: container,
		logger:    logger,
		table:     NewTable(),
		filters:   newFilterSet(),
	}
}

// Use 注册全局中间件。
func (p *Pipeline) Use(m ...Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, m...)
	return p
}

// UseGuard 注册全局守卫。
func (p *Pipeline) UseGuard(g ...Guard) *Pipeline {
	p.guards = append(p.guards, g...)
	return p
}

// UseInterceptor 注册全局拦截器。
func (p *Pipeline) UseInterceptor(i ...Interceptor) *Pipeline {
	p.interceptors = append(p.interceptors, i...)
	return p
}

// UseFilter 注册异常过滤器。
// targets 声明它处理哪些错误类别，留空表示兜底。
func (p *Pipeline) UseFilter(f ExceptionFilter, targets ...error) *Pipeline {
	p.filters.add(f, targets...)
	return p
}

// AddRoute 注册路由。
func (p *Pipeline) AddRoute(route Route) error {
	return p.table.Add(route)
}

// Routes 返回已注册的路由。
func (p *Pipeline) Routes() []*Route {
	return p.table.Routes()
}

// Handle 执行一次请求。
// 每个请求在全新的请求作用域内执行，作用域在请求结束时释放，
// 无论处理器正常返回、报错还是恐慌。
func (p *Pipeline) Handle(ctx context.Context, req Request) Response {
	scope := p.container.NewRequestScope()

	var resp Response
	err := scope.Run(func() error {
		resp = p.execute(ctx, req, scope)
		return nil
	})
	if err != nil {
		p.logger.Error("Request scope failed",
			logging.Field{Key: "error", Value: err.Error()})
		return serverErrorResponse()
	}
	return resp
}

// execute 驱动单个请求走完全部阶段。
func (p *Pipeline) execute(ctx context.Context, req Request, scope *di.RequestScope) (resp Response) {
	ec := newExecutionContext(ctx, req, scope)

	// 兜底恢复。任何阶段的恐慌都不能离开管线
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline recovered from panic",
				logging.Field{Key: "method", Value: req.Method},
				logging.Field{Key: "path", Value: req.Path},
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			resp = serverErrorResponse()
		}
	}()

	// 1. 路由匹配
	ec.phase = PhaseMatching
	route, params, ok := p.table.Match(req.Method, req.Path)
	if !ok {
		return p.handleException(ec, ErrRouteNotFound)
	}
	ec.route = route
	ec.params = params

	// 上下文登记进作用域，请求级服务可以注入它
	if err := scope.Set(di.TypeOf[*ExecutionContext](), ec); err != nil {
		return p.handleException(ec, err)
	}

	// 2. 守卫检查：顺序执行，第一个拒绝立即终止
	ec.phase = PhaseGuardCheck
	guards := make([]Guard, 0, len(p.guards)+len(route.Guards))
	guards = append(guards, p.guards...)
	guards = append(guards, route.Guards...)
	for _, guard := range guards {
		allowed, err := guard.CanActivate(ec)
		if err != nil {
			return p.handleException(ec, err)
		}
		if !allowed {
			return p.handleException(ec, &DeniedError{Guard: fmt.Sprintf("%T", guard)})
		}
	}

	// 3. 中间件链，终点是拦截器与处理器
	ec.phase = PhaseMiddleware
	ec.chain = make([]Middleware, 0, len(p.middlewares)+len(route.Middlewares))
	ec.chain = append(ec.chain, p.middlewares...)
	ec.chain = append(ec.chain, route.Middlewares...)
	ec.terminal = func() error {
		return p.runTerminal(ec, route)
	}
	if err := ec.Next(); err != nil {
		return p.handleException(ec, err)
	}

	// 4. 响应归一化
	ec.phase = PhaseResponding
	return p.finalize(ec)
}

// runTerminal 拦截器环绕的处理器调用。
// Before 按注册顺序，After 按相反顺序，先注册的拦截器在最外层。
func (p *Pipeline) runTerminal(ec *ExecutionContext, route *Route) error {
	ec.phase = PhaseInterception
	interceptors := make([]Interceptor, 0, len(p.interceptors)+len(route.Interceptors))
	interceptors = append(interceptors, p.interceptors...)
	interceptors = append(interceptors, route.Interceptors...)

	for _, interceptor := range interceptors {
		if err := interceptor.Before(ec); err != nil {
			return err
		}
	}

	ec.phase = PhaseHandlerCall
	result, err := p.invokeHandler(ec, route)
	if err != nil {
		return &HandlerError{Route: route.String(), Phase: PhaseHandlerCall, Err: err}
	}

	ec.phase = PhaseInterception
	for i := len(interceptors) - 1; i >= 0; i-- {
		result, err = interceptors[i].After(ec, result)
		if err != nil {
			return err
		}
	}

	ec.result = result
	return nil
}

// invokeHandler 调用处理器并把恐慌转成错误。
func (p *Pipeline) invokeHandler(ec *ExecutionContext, route *Route) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return route.Handler(ec)
}

// finalize 把执行结果归一化为响应。
// 显式写入的响应优先；处理器结果为 *Response 时直接采用；
// 其余结果作为 200 的正文；没有结果则是 200 空正文。
func (p *Pipeline) finalize(ec *ExecutionContext) Response {
	var resp Response
	switch {
	case ec.Response() != nil:
		resp = *ec.Response()
	case ec.result != nil:
		if r, ok := ec.result.(*Response); ok {
			resp = *r
		} else {
			resp = Response{Status: 200, Body: ec.result}
		}
	default:
		resp = Response{Status: 200}
	}
	resp.Headers = ec.responseHeaders(resp)
	return resp
}

// handleException 异常处理阶段。
// 最具针对性的一个过滤器执行；没人处理时按类别给兜底响应，
// 错误细节只进日志，不出现在响应正文里。
func (p *Pipeline) handleException(ec *ExecutionContext, err error) Response {
	ec.phase = PhaseExceptionHandling

	if filter, ok := p.filters.match(err); ok {
		if resp, handled := p.safeCatch(filter, err, ec); handled && resp != nil {
			out := *resp
			out.Headers = ec.responseHeaders(out)
			return out
		}
	}

	var out Response
	switch {
	case errors.Is(err, ErrRouteNotFound):
		p.logger.Debug("No route matched",
			logging.Field{Key: "method", Value: ec.Method()},
			logging.Field{Key: "path", Value: ec.Path()})
		out = notFoundResponse()
	case errors.Is(err, ErrAuthorizationDenied):
		p.logger.Warn("Request denied",
			logging.Field{Key: "method", Value: ec.Method()},
			logging.Field{Key: "path", Value: ec.Path()},
			logging.Field{Key: "error", Value: err.Error()})
		out = forbiddenResponse()
	default:
		p.logger.Error("Request failed",
			logging.Field{Key: "method", Value: ec.Method()},
			logging.Field{Key: "path", Value: ec.Path()},
			logging.Field{Key: "error", Value: err.Error()})
		out = serverErrorResponse()
	}
	out.Headers = ec.responseHeaders(out)
	return out
}

// safeCatch 执行过滤器，恐慌视为未处理。
func (p *Pipeline) safeCatch(filter ExceptionFilter, err error, ec *ExecutionContext) (resp *Response, handled bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Exception filter panicked",
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			resp = nil
			handled = false
		}
	}()
	return filter.Catch(err, ec)
}
