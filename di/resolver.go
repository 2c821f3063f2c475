package di

import (
	"fmt"
	"reflect"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// resolveChain 记录当前解析路径，用于增量环检测。
// 链沿调用栈传递，单个逻辑流内无需加锁。
type resolveChain struct {
	path []serviceKey
}

// push 将 key 压入解析路径，命中已有节点即返回完整环路。
func (ch *resolveChain) push(key serviceKey) error {
	for _, k := range ch.path {
		if k == key {
			return cycleErrorFrom(ch.path, key)
		}
	}
	ch.path = append(ch.path, key)
	return nil
}

func (ch *resolveChain) pop() {
	ch.path = ch.path[:len(ch.path)-1]
}

// requester 返回当前正在构建的服务，用于缺失依赖的错误提示。
func (ch *resolveChain) requester() string {
	if len(ch.path) == 0 {
		return ""
	}
	return ch.path[len(ch.path)-1].String()
}

// createInstance 按提供者类别构建实例。
// 进入这里之前环检测已经完成，失败只会来自构建本身。
func (c *Container) createInstance(def *Descriptor, rs *RequestScope, ch *resolveChain) (any, error) {
	switch def.kind {
	case kindValue:
		return def.value, nil
	case kindFactory:
		return c.invokeFactory(def, rs, ch)
	default:
		return c.createStruct(def, rs, ch)
	}
}

// invokeFactory 解析工厂参数并调用，遵循 error 在最后的约定。
func (c *Container) invokeFactory(def *Descriptor, rs *RequestScope, ch *resolveChain) (any, error) {
	fnValue := reflect.ValueOf(def.factory)
	fnType := fnValue.Type()

	args := make([]reflect.Value, fnType.NumIn())
	for i, dep := range def.schema.args {
		value, err := c.resolveDep(def, dep, rs, ch)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}

	results := fnValue.Call(args)
	if len(results) == 0 {
		return nil, fmt.Errorf("di: %s 的工厂没有返回值", def.key)
	}

	// error 在最后的约定
	last := results[len(results)-1]
	if len(results) > 1 && last.Type().Implements(errType) {
		if !last.IsNil() {
			return nil, fmt.Errorf("di: 构建 %s 失败: %w", def.key, last.Interface().(error))
		}
	}

	first := results[0]
	if first.Kind() == reflect.Ptr || first.Kind() == reflect.Interface {
		if first.IsNil() {
			return nil, fmt.Errorf("di: %s 的工厂返回了 nil 实例", def.key)
		}
	}
	return first.Interface(), nil
}

// createStruct 分配实现类型并注入带 di 标签的字段。
func (c *Container) createStruct(def *Descriptor, rs *RequestScope, ch *resolveChain) (any, error) {
	typ := def.implType
	if typ == nil {
		return nil, fmt.Errorf("di: %s 缺少实现类型", def.key)
	}

	structType := typ
	isPtr := typ.Kind() == reflect.Ptr
	if isPtr {
		structType = typ.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("di: %s 的实现类型 %v 不是结构体", def.key, typ)
	}

	ptr := reflect.New(structType)
	elem := ptr.Elem()

	for _, f := range def.schema.fields {
		value, err := c.resolveDep(def, f.dep, rs, ch)
		if err != nil {
			return nil, fmt.Errorf("注入字段 %s 失败: %w", f.name, err)
		}
		field := elem.Field(f.index)
		if !field.CanSet() {
			return nil, fmt.Errorf("di: 字段 %s.%s 未导出，无法注入", structType.Name(), f.name)
		}
		if value.IsValid() {
			field.Set(value)
		}
	}

	if isPtr {
		return ptr.Interface(), nil
	}
	return elem.Interface(), nil
}

// resolveDep 解析一条依赖边。
// 可选依赖缺失时注入零值，其余失败原样上抛。
func (c *Container) resolveDep(def *Descriptor, dep dependency, rs *RequestScope, ch *resolveChain) (reflect.Value, error) {
	instance, err := c.resolveKey(dep.key, rs, ch)
	if err != nil {
		if (dep.optional || def.optional) && isMissing(err) {
			return reflect.Zero(dep.key.typ), nil
		}
		return reflect.Value{}, err
	}
	if instance == nil {
		return reflect.Zero(dep.key.typ), nil
	}

	value := reflect.ValueOf(instance)
	if !value.Type().AssignableTo(dep.key.typ) {
		if value.Type().ConvertibleTo(dep.key.typ) {
			return value.Convert(dep.key.typ), nil
		}
		return reflect.Value{}, fmt.Errorf("di: %v 无法赋值给 %v", value.Type(), dep.key.typ)
	}
	return value, nil
}
