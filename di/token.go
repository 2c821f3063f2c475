package di

import (
	"fmt"
	"reflect"
)

// Token 表示一个注入令牌，用于区分相同类型的不同依赖
//
// 令牌按指针身份比较：两个同名 Token 是两个不同的键。
// 需要共享时在包级别声明一次并导出。
//
// 示例：
//
//	var DBConnectionString = di.NewToken[string]("db.connection")
//
//	di.Register[string](registry,
//		di.WithToken(DBConnectionString),
//		di.WithValue("postgres://..."))
//
//	conn, _ := di.ResolveToken(container, DBConnectionString)
type Token[T any] struct {
	name string
	typ  reflect.Type
}

// NewToken 创建一个新的 Token
//
// 参数 name 仅用于诊断输出，不参与键的比较。
func NewToken[T any](name string) *Token[T] {
	return &Token[T]{
		name: name,
		typ:  reflect.TypeOf((*T)(nil)).Elem(),
	}
}

// Name 返回 Token 的名称
func (t *Token[T]) Name() string {
	return t.name
}

// Type 返回 Token 承载的类型
func (t *Token[T]) Type() reflect.Type {
	return t.typ
}

// String 返回 Token 的字符串表示
func (t *Token[T]) String() string {
	return fmt.Sprintf("Token[%s](%s)", t.typ, t.name)
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// tokenRef Token 的通用接口（用于类型判断）
type tokenRef interface {
	Name() string
	Type() reflect.Type
	String() string
}

// serviceKey 是注册表的唯一键。
// 三种形态：纯类型键、符号 Token 键、命名实例键。
// 比较语义：typ 与 token 按身份比较（reflect.Type 与指针），name 按值比较。
type serviceKey struct {
	typ   reflect.Type
	token tokenRef
	name  string
}

// String 返回键的诊断表示。
func (k serviceKey) String() string {
	if k.token != nil {
		return k.token.String()
	}
	if k.name != "" {
		return fmt.Sprintf("%v(name=%s)", k.typ, k.name)
	}
	return fmt.Sprintf("%v", k.typ)
}

// keyFor 将用户提供的标识解析为 serviceKey。
// provide 可以是 reflect.Type、*Token[T]，或一个值（取其类型，
// 指向接口的指针会被解包为接口类型）。
func keyFor(provide any, name string) (serviceKey, error) {
	switch v := provide.(type) {
	case nil:
		return serviceKey{}, fmt.Errorf("di: 无法从空的 Provide 确定类型")
	case reflect.Type:
		return serviceKey{typ: v, name: name}, nil
	case tokenRef:
		return serviceKey{typ: v.Type(), token: v, name: name}, nil
	default:
		typ := reflect.TypeOf(v)
		if typ.Kind() == reflect.Ptr && typ.Elem().Kind() == reflect.Interface {
			return serviceKey{typ: typ.Elem(), name: name}, nil
		}
		return serviceKey{typ: typ, name: name}, nil
	}
}
