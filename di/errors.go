package di

import (
	"errors"
	"fmt"
	"strings"
)

// 容器错误类别。调用方用 errors.Is 判断类别，
// 用 errors.As 取出携带细节的具体错误。
var (
	// ErrUnresolvedDependency 所需依赖未注册
	ErrUnresolvedDependency = errors.New("di: unresolved dependency")

	// ErrCircularDependency 依赖图中存在循环
	ErrCircularDependency = errors.New("di: circular dependency")

	// ErrScopeViolation 作用域使用错误（如无请求作用域时解析请求级服务）
	ErrScopeViolation = errors.New("di: scope violation")
)

// MissingDependencyError 记录缺失的键以及是谁需要它。
type MissingDependencyError struct {
	Key       string // 缺失的服务键
	Requester string // 请求方（为空表示直接解析）
}

func (e *MissingDependencyError) Error() string {
	if e.Requester == "" {
		return fmt.Sprintf("di: 未找到服务 %s", e.Key)
	}
	return fmt.Sprintf("di: 未找到服务 %s (被 %s 依赖)", e.Key, e.Requester)
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrUnresolvedDependency
}

// isMissing 判断错误是否属于"依赖未注册"，可选注入只吞掉这一类失败。
func isMissing(err error) bool {
	return errors.Is(err, ErrUnresolvedDependency)
}

// CycleError 携带完整的循环路径，首尾为同一个键。
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("di: 检测到循环依赖: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCircularDependency
}
