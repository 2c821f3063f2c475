package pipeline

// Guard 决定请求是否放行。
// 守卫按注册顺序依次执行，第一个拒绝立刻终止检查，
// 后续守卫不再执行。返回错误进入异常处理而不是拒绝。
type Guard interface {
	CanActivate(ctx *ExecutionContext) (bool, error)
}

// GuardFunc 函数式守卫。
type GuardFunc func(ctx *ExecutionContext) (bool, error)

func (f GuardFunc) CanActivate(ctx *ExecutionContext) (bool, error) {
	return f(ctx)
}

// Middleware 中间件，必须显式调用 ctx.Next() 才会继续管线。
// 不调用 Next 直接返回时，管线使用中间件已写入的响应收尾，
// 什么都没写则响应 200 空正文。
type Middleware interface {
	Use(ctx *ExecutionContext) error
}

// MiddlewareFunc 函数式中间件。
type MiddlewareFunc func(ctx *ExecutionContext) error

func (f MiddlewareFunc) Use(ctx *ExecutionContext) error {
	return f(ctx)
}

// Interceptor 环绕处理器执行。
// Before 按注册顺序执行，After 按相反顺序执行并可改写结果，
// 形成先注册者在最外层的包裹结构。
type Interceptor interface {
	Before(ctx *ExecutionContext) error
	After(ctx *ExecutionContext, result any) (any, error)
}

// ExceptionFilter 把错误翻译成响应。
// 返回 handled=false 表示放弃处理，交给默认响应。
type ExceptionFilter interface {
	Catch(err error, ctx *ExecutionContext) (*Response, bool)
}

// ExceptionFilterFunc 函数式异常过滤器。
type ExceptionFilterFunc func(err error, ctx *ExecutionContext) (*Response, bool)

func (f ExceptionFilterFunc) Catch(err error, ctx *ExecutionContext) (*Response, bool) {
	return f(err, ctx)
}

// HandlerFunc 路由处理器。
// 返回值作为响应正文；返回 *Response 可完全控制状态码与响应头。
type HandlerFunc func(ctx *ExecutionContext) (any, error)
