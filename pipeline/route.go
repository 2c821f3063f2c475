package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// Route 一条路由：方法、路径模式与处理器，外加路由级环节。
// 路径模式用 ":name" 声明参数段，例如 /users/:id。
type Route struct {
	Method       string
	Path         string
	Handler      HandlerFunc
	Guards       []Guard
	Middlewares  []Middleware
	Interceptors []Interceptor

	// Name 诊断名称，日志与错误里代替处理器指针出现
	Name string

	segments []string
}

// String 返回 "METHOD /path" 形式的诊断表示。
func (r *Route) String() string {
	if r.Name != "" {
		return fmt.Sprintf("%s %s (%s)", r.Method, r.Path, r.Name)
	}
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

// Table 路由表。按注册顺序匹配，先注册的先命中。
type Table struct {
	mu     sync.RWMutex
	routes []*Route
}

// NewTable 创建空路由表。
func NewTable() *Table {
	return &Table{}
}

// Add 注册一条路由。
func (t *Table) Add(route Route) error {
	if route.Handler == nil {
		return fmt.Errorf("pipeline: route %s %s has no handler", route.Method, route.Path)
	}
	if route.Method == "" {
		return fmt.Errorf("pipeline: route %s has no method", route.Path)
	}
	route.Method = strings.ToUpper(route.Method)
	route.Path = normalizePath(route.Path)
	route.segments = splitPath(route.Path)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, &route)
	return nil
}

// Match 按方法与路径查找路由，返回提取的路径参数。
func (t *Table) Match(method, path string) (*Route, map[string]string, bool) {
	method = strings.ToUpper(method)
	segments := splitPath(normalizePath(path))

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, route := range t.routes {
		if route.Method != method {
			continue
		}
		if params, ok := matchSegments(route.segments, segments); ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

// Routes 返回注册顺序的路由副本。
func (t *Table) Routes() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len 返回路由数量。
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

func matchSegments(pattern, actual []string) (map[string]string, bool) {
	if len(pattern) != len(actual) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if actual[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg[1:]] = actual[i]
			continue
		}
		if seg != actual[i] {
			return nil, false
		}
	}
	return params, true
}

// normalizePath 确保路径以 / 开头，去掉末尾的 /（根路径除外）。
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func splitPath(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}
