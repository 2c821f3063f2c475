package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gocrud/nest/di"
	"github.com/gocrud/nest/logging"
	"github.com/gocrud/nest/pipeline"
)

// 记录执行轨迹
type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(event string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, event)
}

func (tr *trace) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.events))
	copy(out, tr.events)
	return out
}

func (tr *trace) equals(t *testing.T, want ...string) {
	t.Helper()
	got := tr.list()
	if len(got) != len(want) {
		t.Fatalf("trace mismatch:\n got %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace mismatch:\n got %v\nwant %v", got, want)
		}
	}
}

func newPipeline(t *testing.T, setup func(*di.Registry)) *pipeline.Pipeline {
	t.Helper()
	registry := di.NewRegistry()
	if setup != nil {
		setup(registry)
	}
	container := di.NewContainer(registry)
	if err := container.Build(); err != nil {
		t.Fatalf("container Build failed: %v", err)
	}
	return pipeline.New(container, logging.NewNopLogger())
}

func get(path string) pipeline.Request {
	return pipeline.Request{Method: "GET", Path: path, Query: url.Values{}}
}

func bodyError(t *testing.T, resp pipeline.Response) string {
	t.Helper()
	body, ok := resp.Body.(map[string]any)
	if !ok {
		t.Fatalf("expected map body, got %T", resp.Body)
	}
	msg, _ := body["error"].(string)
	return msg
}

// 守卫顺序执行，第一个拒绝终止检查
func TestGuardFirstDenyWins(t *testing.T) {
	tr := &trace{}
	p := newPipeline(t, nil)

	p.UseGuard(
		pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
			tr.add("g1")
			return true, nil
		}),
		pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
			tr.add("g2")
			return false, nil
		}),
		pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
			tr.add("g3")
			return true, nil
		}),
	)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/secure", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		tr.add("handler")
		return "ok", nil
	}})

	resp := p.Handle(context.Background(), get("/secure"))
	if resp.Status != 403 {
		t.Fatalf("expected 403, got %d", resp.Status)
	}
	if bodyError(t, resp) != "Forbidden" {
		t.Fatalf("expected Forbidden body, got %v", resp.Body)
	}
	tr.equals(t, "g1", "g2")
}

// 守卫报错走异常处理而不是拒绝
func TestGuardErrorBecomesServerError(t *testing.T) {
	p := newPipeline(t, nil)
	p.UseGuard(pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
		return false, errors.New("token service down")
	}))
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return "ok", nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 500 {
		t.Fatalf("expected 500, got %d", resp.Status)
	}
}

// 路由级守卫排在全局守卫之后
func TestRouteGuardAfterGlobal(t *testing.T) {
	tr := &trace{}
	p := newPipeline(t, nil)
	p.UseGuard(pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
		tr.add("global")
		return true, nil
	}))
	_ = p.AddRoute(pipeline.Route{
		Method: "GET", Path: "/x",
		Guards: []pipeline.Guard{pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
			tr.add("route")
			return true, nil
		})},
		Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
			tr.add("handler")
			return nil, nil
		},
	})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	tr.equals(t, "global", "route", "handler")
}

type tracingInterceptor struct {
	name string
	tr   *trace
}

func (i *tracingInterceptor) Before(ctx *pipeline.ExecutionContext) error {
	i.tr.add(i.name + ":before")
	return nil
}

func (i *tracingInterceptor) After(ctx *pipeline.ExecutionContext, result any) (any, error) {
	i.tr.add(i.name + ":after")
	if s, ok := result.(string); ok {
		return s + "+" + i.name, nil
	}
	return result, nil
}

// 拦截器包裹顺序：先注册的在最外层
func TestInterceptorOrder(t *testing.T) {
	tr := &trace{}
	p := newPipeline(t, nil)
	p.UseInterceptor(
		&tracingInterceptor{name: "i1", tr: tr},
		&tracingInterceptor{name: "i2", tr: tr},
	)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		tr.add("handler")
		return "h", nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	tr.equals(t, "i1:before", "i2:before", "handler", "i2:after", "i1:after")

	// After 反向执行：内层先改写结果
	if resp.Body != "h+i2+i1" {
		t.Fatalf("expected h+i2+i1, got %v", resp.Body)
	}
}

type failingBeforeInterceptor struct{ tr *trace }

func (i *failingBeforeInterceptor) Before(ctx *pipeline.ExecutionContext) error {
	i.tr.add("failing:before")
	return errors.New("interceptor setup failed")
}

func (i *failingBeforeInterceptor) After(ctx *pipeline.ExecutionContext, result any) (any, error) {
	i.tr.add("failing:after")
	return result, nil
}

// Before 失败时处理器不执行
func TestInterceptorBeforeFailure(t *testing.T) {
	tr := &trace{}
	p := newPipeline(t, nil)
	p.UseInterceptor(&failingBeforeInterceptor{tr: tr})
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		tr.add("handler")
		return nil, nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 500 {
		t.Fatalf("expected 500, got %d", resp.Status)
	}
	tr.equals(t, "failing:before")
}

// 中间件必须显式调用 Next 才会继续
func TestMiddlewareContinuation(t *testing.T) {
	tr := &trace{}
	p := newPipeline(t, nil)
	p.Use(
		pipeline.MiddlewareFunc(func(ctx *pipeline.ExecutionContext) error {
			tr.add("m1:in")
			err := ctx.Next()
			tr.add("m1:out")
			return err
		}),
		pipeline.MiddlewareFunc(func(ctx *pipeline.ExecutionContext) error {
			tr.add("m2:in")
			err := ctx.Next()
			tr.add("m2:out")
			return err
		}),
	)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		tr.add("handler")
		return "done", nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 200 || resp.Body != "done" {
		t.Fatalf("expected 200 done, got %d %v", resp.Status, resp.Body)
	}
	tr.equals(t, "m1:in", "m2:in", "handler", "m2:out", "m1:out")
}

// 不调用 Next 的中间件用自己的响应收尾
func TestMiddlewareShortCircuit(t *testing.T) {
	tr := &trace{}
	p := newPipeline(t, nil)
	p.Use(pipeline.MiddlewareFunc(func(ctx *pipeline.ExecutionContext) error {
		ctx.JSON(418, map[string]any{"reason": "teapot"})
		return nil
	}))
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		tr.add("handler")
		return nil, nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 418 {
		t.Fatalf("expected 418, got %d", resp.Status)
	}
	tr.equals(t)
}

// 既不继续也不写响应：200 空正文
func TestMiddlewareSilentStop(t *testing.T) {
	p := newPipeline(t, nil)
	p.Use(pipeline.MiddlewareFunc(func(ctx *pipeline.ExecutionContext) error {
		return nil
	}))
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return "never", nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 200 || resp.Body != nil {
		t.Fatalf("expected empty 200, got %d %v", resp.Status, resp.Body)
	}
}

// 处理器返回 *Response 时完全控制响应
func TestHandlerResponseControl(t *testing.T) {
	p := newPipeline(t, nil)
	_ = p.AddRoute(pipeline.Route{Method: "POST", Path: "/users", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return pipeline.Created(map[string]any{"id": "9"}).WithHeader("Location", "/users/9"), nil
	}})

	resp := p.Handle(context.Background(), pipeline.Request{Method: "POST", Path: "/users"})
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d", resp.Status)
	}
	if resp.Headers["Location"] != "/users/9" {
		t.Fatalf("expected Location header, got %v", resp.Headers)
	}
}

// 路径参数与查询参数
func TestHandlerParams(t *testing.T) {
	p := newPipeline(t, nil)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/users/:id", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return map[string]any{
			"id":   ctx.Param("id"),
			"name": ctx.Query("name"),
		}, nil
	}})

	req := pipeline.Request{Method: "GET", Path: "/users/42", Query: url.Values{"name": {"X"}}}
	resp := p.Handle(context.Background(), req)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	body := resp.Body.(map[string]any)
	if body["id"] != "42" || body["name"] != "X" {
		t.Fatalf("unexpected body: %v", body)
	}
}

// 请求体绑定
func TestHandlerBindBody(t *testing.T) {
	p := newPipeline(t, nil)
	_ = p.AddRoute(pipeline.Route{Method: "POST", Path: "/users", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		var payload struct {
			Name string `json:"name"`
		}
		if err := ctx.BindBody(&payload); err != nil {
			return nil, err
		}
		return pipeline.Created(map[string]any{"name": payload.Name}), nil
	}})

	req := pipeline.Request{Method: "POST", Path: "/users", Body: []byte(`{"name":"alice"}`)}
	resp := p.Handle(context.Background(), req)
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d", resp.Status)
	}
	if resp.Body.(map[string]any)["name"] != "alice" {
		t.Fatalf("unexpected body: %v", resp.Body)
	}
}

// 处理器错误：响应不泄露内部细节
func TestHandlerErrorDoesNotLeak(t *testing.T) {
	p := newPipeline(t, nil)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return nil, errors.New("password for db is hunter2")
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 500 {
		t.Fatalf("expected 500, got %d", resp.Status)
	}
	if rendered := fmt.Sprint(resp.Body); strings.Contains(rendered, "hunter2") {
		t.Fatalf("response leaked internal error detail: %v", rendered)
	}
	if bodyError(t, resp) != "Internal Server Error" {
		t.Fatalf("expected generic message, got %v", resp.Body)
	}
}

// 恐慌被恢复，进程继续服务
func TestHandlerPanicRecovered(t *testing.T) {
	p := newPipeline(t, nil)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/boom", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		panic("index out of range")
	}})
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/ok", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return "still alive", nil
	}})

	resp := p.Handle(context.Background(), get("/boom"))
	if resp.Status != 500 {
		t.Fatalf("expected 500, got %d", resp.Status)
	}

	resp = p.Handle(context.Background(), get("/ok"))
	if resp.Status != 200 || resp.Body != "still alive" {
		t.Fatalf("pipeline must keep serving after a panic, got %d %v", resp.Status, resp.Body)
	}
}

// 未匹配路由：404
func TestRouteNotFound(t *testing.T) {
	p := newPipeline(t, nil)
	resp := p.Handle(context.Background(), get("/nowhere"))
	if resp.Status != 404 {
		t.Fatalf("expected 404, got %d", resp.Status)
	}
	if bodyError(t, resp) != "Not Found" {
		t.Fatalf("expected Not Found body, got %v", resp.Body)
	}
}

type requestState struct {
	ID int64
}

// 请求作用域：请求内共享，请求间隔离
func TestRequestScopedServices(t *testing.T) {
	var counter int64
	var mu sync.Mutex

	p := newPipeline(t, func(registry *di.Registry) {
		di.Register[*requestState](registry,
			di.WithFactory(func() *requestState {
				mu.Lock()
				defer mu.Unlock()
				counter++
				return &requestState{ID: counter}
			}),
			di.WithRequest())
	})

	p.UseGuard(pipeline.GuardFunc(func(ctx *pipeline.ExecutionContext) (bool, error) {
		state, err := ctx.Resolve(di.TypeOf[*requestState]())
		if err != nil {
			return false, err
		}
		ctx.Set("guard-id", state.(*requestState).ID)
		return true, nil
	}))
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		state, err := ctx.Resolve(di.TypeOf[*requestState]())
		if err != nil {
			return nil, err
		}
		guardID, _ := ctx.Value("guard-id")
		return map[string]any{
			"handler": state.(*requestState).ID,
			"guard":   guardID,
		}, nil
	}})

	first := p.Handle(context.Background(), get("/x"))
	if first.Status != 200 {
		t.Fatalf("expected 200, got %d", first.Status)
	}
	firstBody := first.Body.(map[string]any)
	if firstBody["handler"] != firstBody["guard"] {
		t.Fatalf("guard and handler must share the request instance: %v", firstBody)
	}

	second := p.Handle(context.Background(), get("/x"))
	secondBody := second.Body.(map[string]any)
	if secondBody["handler"] == firstBody["handler"] {
		t.Fatalf("requests must not share scoped instances: %v vs %v", firstBody, secondBody)
	}
}

// 执行上下文本身可以从作用域解析
func TestExecutionContextInScope(t *testing.T) {
	p := newPipeline(t, nil)
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		fromScope, ok := ctx.Scope().Get(di.TypeOf[*pipeline.ExecutionContext]())
		if !ok {
			return nil, errors.New("context missing from scope")
		}
		if fromScope.(*pipeline.ExecutionContext) != ctx {
			return nil, errors.New("scope returned a different context")
		}
		return "same", nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Status != 200 || resp.Body != "same" {
		t.Fatalf("expected 200 same, got %d %v", resp.Status, resp.Body)
	}
}

// 响应头合并：显式响应的头优先
func TestResponseHeaderMerging(t *testing.T) {
	p := newPipeline(t, nil)
	p.Use(pipeline.MiddlewareFunc(func(ctx *pipeline.ExecutionContext) error {
		ctx.SetHeader("X-Trace", "abc")
		ctx.SetHeader("X-Shared", "from-middleware")
		return ctx.Next()
	}))
	_ = p.AddRoute(pipeline.Route{Method: "GET", Path: "/x", Handler: func(ctx *pipeline.ExecutionContext) (any, error) {
		return pipeline.OK("body").WithHeader("X-Shared", "from-handler"), nil
	}})

	resp := p.Handle(context.Background(), get("/x"))
	if resp.Headers["X-Trace"] != "abc" {
		t.Fatalf("accumulated header lost: %v", resp.Headers)
	}
	if resp.Headers["X-Shared"] != "from-handler" {
		t.Fatalf("explicit response header must win: %v", resp.Headers)
	}
}
