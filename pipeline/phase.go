package pipeline

// Phase 请求在管线中所处的阶段。
// 正常流转: Matching -> GuardCheck -> Middleware -> Interception ->
// HandlerCall -> Responding；任何阶段出错都进入 ExceptionHandling。
type Phase int

const (
	PhaseMatching Phase = iota
	PhaseGuardCheck
	PhaseMiddleware
	PhaseInterception
	PhaseHandlerCall
	PhaseResponding
	PhaseExceptionHandling
)

// String 返回阶段名称。
func (p Phase) String() string {
	switch p {
	case PhaseMatching:
		return "matching"
	case PhaseGuardCheck:
		return "guard-check"
	case PhaseMiddleware:
		return "middleware"
	case PhaseInterception:
		return "interception"
	case PhaseHandlerCall:
		return "handler"
	case PhaseResponding:
		return "responding"
	case PhaseExceptionHandling:
		return "exception-handling"
	default:
		return "unknown"
	}
}
