package di

import (
	"errors"
	"fmt"
	"reflect"
)

// Invoke 调用 fn，参数全部从容器解析。
// fn 的最后一个返回值是 error 时透传，其余返回值忽略。
func (c *Container) Invoke(fn any) error {
	return c.InvokeScoped(fn, nil)
}

// InvokeScoped 在请求作用域内调用 fn，请求级参数从 rs 解析。
func (c *Container) InvokeScoped(fn any, rs *RequestScope) error {
	if !c.built.Load() {
		return errors.New("di: 容器尚未构建")
	}

	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("di: Invoke 期望函数，得到 %T", fn)
	}
	if fnType.IsVariadic() {
		return fmt.Errorf("di: Invoke 不支持可变参数函数")
	}

	args := make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		key := serviceKey{typ: fnType.In(i)}
		instance, err := c.resolveKey(key, rs, &resolveChain{})
		if err != nil {
			return fmt.Errorf("di: 解析第 %d 个参数失败: %w", i+1, err)
		}
		if instance == nil {
			args[i] = reflect.Zero(fnType.In(i))
			continue
		}
		args[i] = reflect.ValueOf(instance)
	}

	results := fnValue.Call(args)
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errType) && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}
