package pipeline

import (
	"errors"
	"sync"
)

// filterEntry 一个过滤器及其目标错误。targets 为空表示兜底过滤器。
type filterEntry struct {
	filter  ExceptionFilter
	targets []error
}

// filterSet 按针对性选择异常过滤器。
//
// 针对性按错误展开链计算：目标命中的位置离根因越近越具体。
// 包装错误（如处理器失败包装）位于链的外层，是宽泛的类别；
// 根因位于最内层。并列时先注册的胜出，兜底过滤器永远排最后。
// 只有一个过滤器会执行，过滤器之间不链式传递。
type filterSet struct {
	mu      sync.RWMutex
	entries []*filterEntry
}

func newFilterSet() *filterSet {
	return &filterSet{}
}

func (s *filterSet) add(filter ExceptionFilter, targets ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &filterEntry{filter: filter, targets: targets})
}

// match 返回最具针对性的过滤器。
func (s *filterSet) match(err error) (ExceptionFilter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best ExceptionFilter
	bestDepth := -1
	haveCatchAll := false
	var catchAll ExceptionFilter

	for _, entry := range s.entries {
		if len(entry.targets) == 0 {
			if !haveCatchAll {
				haveCatchAll = true
				catchAll = entry.filter
			}
			continue
		}
		for _, target := range entry.targets {
			depth, ok := matchDepth(err, target)
			if !ok {
				continue
			}
			if depth > bestDepth {
				bestDepth = depth
				best = entry.filter
			}
		}
	}

	if best != nil {
		return best, true
	}
	if haveCatchAll {
		return catchAll, true
	}
	return nil, false
}

// matchDepth 返回 target 在 err 展开链中的命中深度。
// 深度从最外层的 0 开始，逐层 Unwrap 递增。
func matchDepth(err, target error) (int, bool) {
	depth := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		if matchesAt(e, target) {
			return depth, true
		}
		depth++
	}
	return 0, false
}

// matchesAt 判断链上单个节点是否命中目标，不继续展开。
func matchesAt(e, target error) bool {
	if e == target {
		return true
	}
	type iser interface{ Is(error) bool }
	if is, ok := e.(iser); ok && is.Is(target) {
		return true
	}
	return false
}
