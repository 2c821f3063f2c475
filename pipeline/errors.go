package pipeline

import (
	"errors"
	"fmt"
)

// 管线错误类别。过滤器与默认响应按类别决定状态码。
var (
	// ErrAuthorizationDenied 守卫拒绝了请求
	ErrAuthorizationDenied = errors.New("pipeline: authorization denied")

	// ErrRouteNotFound 没有路由匹配请求
	ErrRouteNotFound = errors.New("pipeline: route not found")

	// ErrHandlerFailure 处理器执行失败（包括被捕获的 panic）
	ErrHandlerFailure = errors.New("pipeline: handler failure")
)

// DeniedError 记录是哪个守卫拒绝了请求。
type DeniedError struct {
	Guard string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("pipeline: access denied by guard %s", e.Guard)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

// HandlerError 包装处理器产生的错误，记录路由与阶段。
type HandlerError struct {
	Route string
	Phase Phase
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("pipeline: %s failed in phase %s: %v", e.Route, e.Phase, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailure
}
