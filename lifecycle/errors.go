package lifecycle

import (
	"errors"
	"fmt"
)

// ErrInitFailure 启动钩子执行失败。
var ErrInitFailure = errors.New("lifecycle: initialization failure")

// InitError 记录是哪个提供者的启动钩子失败了。
type InitError struct {
	Provider string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("lifecycle: provider %s failed to start: %v", e.Provider, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func (e *InitError) Is(target error) bool {
	return target == ErrInitFailure
}
