package di

import (
	"fmt"
	"reflect"
	"strings"
)

// graphBuilder 负责依赖图的检查、排序与静态环检测。
type graphBuilder struct {
	registry *Registry
}

func newGraphBuilder(r *Registry) *graphBuilder {
	return &graphBuilder{registry: r}
}

// buildOrder 返回单例的构建顺序并验证图：
// 必需依赖缺失、静态循环、单例依赖请求级服务都在这里报错。
func (g *graphBuilder) buildOrder() ([]serviceKey, error) {
	keys := g.registry.keys()
	edges := make(map[serviceKey][]dependency, len(keys))

	// 1. 计算每个服务的注入模式与依赖边
	for _, key := range keys {
		def, _ := g.registry.lookup(key)
		deps, err := g.inspect(def)
		if err != nil {
			return nil, fmt.Errorf("检查 %s 的依赖失败: %w", key, err)
		}
		edges[key] = deps
	}

	// 2. 验证所有必需边
	for _, key := range keys {
		def, _ := g.registry.lookup(key)
		for _, dep := range edges[key] {
			target, exists := g.registry.lookup(dep.key)
			if !exists {
				if dep.optional || def.optional {
					continue
				}
				return nil, &MissingDependencyError{Key: dep.key.String(), Requester: key.String()}
			}
			// 单例不允许依赖请求级服务，生命周期方向是反的
			if def.scope == ScopeSingleton && target.scope == ScopeRequest {
				return nil, fmt.Errorf("di: 单例 %s 不能依赖请求级服务 %s: %w",
					key, dep.key, ErrScopeViolation)
			}
		}
	}

	// 3. 基于 DFS 的拓扑排序，递归栈命中即为环
	visited := make(map[serviceKey]bool, len(keys))
	onStack := make(map[serviceKey]bool, len(keys))
	var path []serviceKey
	var order []serviceKey

	var visit func(serviceKey) error
	visit = func(u serviceKey) error {
		visited[u] = true
		onStack[u] = true
		path = append(path, u)

		for _, dep := range edges[u] {
			v := dep.key
			if _, exists := g.registry.lookup(v); !exists {
				continue // 可选且缺失
			}
			if onStack[v] {
				return cycleErrorFrom(path, v)
			}
			if !visited[v] {
				if err := visit(v); err != nil {
					return err
				}
			}
		}

		onStack[u] = false
		path = path[:len(path)-1]
		order = append(order, u)
		return nil
	}

	for _, key := range keys {
		if !visited[key] {
			if err := visit(key); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

// cycleErrorFrom 从 DFS 路径中截取完整环路，首尾为同一个键。
func cycleErrorFrom(path []serviceKey, repeated serviceKey) *CycleError {
	start := 0
	for i, k := range path {
		if k == repeated {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start+1)
	for _, k := range path[start:] {
		cycle = append(cycle, k.String())
	}
	cycle = append(cycle, repeated.String())
	return &CycleError{Path: cycle}
}

// inspect 计算 def 的注入模式并返回依赖边列表。
func (g *graphBuilder) inspect(def *Descriptor) ([]dependency, error) {
	if def.schema != nil {
		return schemaDeps(def.schema), nil
	}
	def.schema = &injectionSchema{}

	switch def.kind {
	case kindValue:
		return nil, nil

	case kindExisting:
		dep := dependency{key: def.target}
		def.schema.args = []dependency{dep}
		return []dependency{dep}, nil

	case kindFactory:
		if err := g.analyzeFunction(def); err != nil {
			return nil, err
		}
		return schemaDeps(def.schema), nil

	default:
		if err := g.analyzeStruct(def); err != nil {
			return nil, err
		}
		return schemaDeps(def.schema), nil
	}
}

func schemaDeps(schema *injectionSchema) []dependency {
	deps := make([]dependency, 0, len(schema.args)+len(schema.fields))
	deps = append(deps, schema.args...)
	for _, f := range schema.fields {
		deps = append(deps, f.dep)
	}
	return deps
}

// analyzeFunction 解析工厂/构造函数的参数依赖。
// 显式 Deps 优先；否则按参数类型推断。
func (g *graphBuilder) analyzeFunction(def *Descriptor) error {
	fnType := reflect.TypeOf(def.factory)
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("期望函数，得到 %v", fnType)
	}
	if fnType.IsVariadic() {
		return fmt.Errorf("工厂函数不支持可变参数: %v", fnType)
	}
	if fnType.NumOut() == 0 {
		return fmt.Errorf("工厂函数没有返回值: %v", fnType)
	}

	if len(def.deps) > 0 {
		if len(def.deps) != fnType.NumIn() {
			return fmt.Errorf("Deps 数量 %d 与工厂参数数量 %d 不一致", len(def.deps), fnType.NumIn())
		}
		for _, raw := range def.deps {
			dep, err := resolveDependency(raw)
			if err != nil {
				return err
			}
			def.schema.args = append(def.schema.args, dep)
		}
		return nil
	}

	for i := 0; i < fnType.NumIn(); i++ {
		def.schema.args = append(def.schema.args, dependency{
			key: serviceKey{typ: fnType.In(i)},
		})
	}
	return nil
}

// analyzeStruct 解析实现类型上带 di 标签的字段。
// 标签语法: di:"name" / di:"" / di:"name,optional" / di:"?"
func (g *graphBuilder) analyzeStruct(def *Descriptor) error {
	typ := def.implType
	if typ == nil {
		return fmt.Errorf("缺少实现类型")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}

		parts := strings.Split(tagValue, ",")
		name := strings.TrimSpace(parts[0])
		isOptional := false
		if name == "?" || name == "optional" {
			name = ""
			isOptional = true
		}
		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			if part == "optional" || part == "?" {
				isOptional = true
			}
		}

		def.schema.fields = append(def.schema.fields, fieldInjection{
			index: i,
			name:  field.Name,
			dep: dependency{
				key:      serviceKey{typ: field.Type, name: name},
				optional: isOptional,
			},
		})
	}
	return nil
}

// resolveDependency 将显式依赖声明转换为依赖边。
func resolveDependency(raw any) (dependency, error) {
	if opt, ok := raw.(optionalDep); ok {
		dep, err := resolveDependency(opt.provide)
		if err != nil {
			return dependency{}, err
		}
		dep.optional = true
		return dep, nil
	}
	key, err := keyFor(raw, "")
	if err != nil {
		return dependency{}, err
	}
	return dependency{key: key}, nil
}
