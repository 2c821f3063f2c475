package core

import (
	"reflect"
	"sync"
)

// FeatureCollection 类型安全的特性集合
// 配置器之间通过它共享构建期对象，例如 Web 构建器、数据库构建器
type FeatureCollection struct {
	features sync.Map
}

// NewFeatureCollection 创建空的特性集合
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{}
}

// Set 注册一个特性，同类型的特性后写覆盖先写
func (fc *FeatureCollection) Set(feature any) {
	typ := reflect.TypeOf(feature)
	fc.features.Store(typ, feature)
}

// Get 按类型获取一个特性
func (fc *FeatureCollection) Get(typ reflect.Type) (any, bool) {
	return fc.features.Load(typ)
}

// GetFeature 从构建上下文获取特性，未注册时返回零值
// T 为接口时必须用 (*T)(nil) 展开取类型，零值接口取不到类型信息
func GetFeature[T any](ctx *BuildContext) T {
	var zero T
	targetType := reflect.TypeOf((*T)(nil)).Elem()

	if val, ok := ctx.features.Get(targetType); ok {
		return val.(T)
	}
	return zero
}
