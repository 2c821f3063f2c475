package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gocrud/nest/logging"
)

// Manager 按优先级分层驱动生命周期钩子。
//
// 启动：优先级从高到低逐层执行，同层并发，下一层等上一层全部完成。
// 某个钩子失败会在所在层收尾后中止启动，已完成的钩子保持已启动状态，
// 不做回滚；Stop 只停止那些启动成功的钩子，顺序与初始化相反。
type Manager struct {
	logger logging.Logger

	mu          sync.Mutex
	hooks       []*Hook
	initialized []*Hook
	running     bool
}

// NewManager 创建生命周期管理器。
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{logger: logger}
}

// Add 注册一个钩子。Start 之后的注册被忽略。
func (m *Manager) Add(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.logger.Warn(fmt.Sprintf("Lifecycle already started, hook %s ignored", hook.Name))
		return
	}
	m.hooks = append(m.hooks, &hook)
}

// OnStart 注册只有启动回调的钩子。
func (m *Manager) OnStart(name string, fn func(ctx context.Context) error) {
	m.Add(Hook{Name: name, OnStart: fn})
}

// OnStop 注册只有停止回调的钩子。
// 没有启动动作的钩子视为启动已完成，Stop 时一定会执行。
func (m *Manager) OnStop(name string, fn func(ctx context.Context) error) {
	m.Add(Hook{Name: name, OnStop: fn})
}

// Observe 检查实例实现了哪些生命周期接口并注册对应钩子。
// 返回是否注册了钩子。
func (m *Manager) Observe(name string, priority int, instance any) bool {
	hook, matched := hookFor(name, priority, instance)
	if matched {
		m.Add(hook)
	}
	return matched
}

// Start 执行全部启动钩子。
// 返回的错误可以用 errors.As 取出 InitError 查看是哪个提供者失败。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("lifecycle: already started")
	}
	m.running = true
	hooks := make([]*Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	priorities, byTier := groupByPriority(hooks)
	m.logger.Info("Starting lifecycle hooks",
		logging.Field{Key: "hooks", Value: len(hooks)},
		logging.Field{Key: "tiers", Value: len(priorities)})

	for _, priority := range priorities {
		tier := byTier[priority]
		m.logger.Debug(fmt.Sprintf("Starting lifecycle tier %d", priority),
			logging.Field{Key: "hooks", Value: len(tier)})

		results := make([]error, len(tier))
		var group errgroup.Group
		for i, hook := range tier {
			if hook.OnStart == nil {
				continue
			}
			i, hook := i, hook
			group.Go(func() error {
				if err := hook.OnStart(ctx); err != nil {
					results[i] = &InitError{Provider: hook.Name, Err: err}
					return results[i]
				}
				return nil
			})
		}
		_ = group.Wait()

		// 同层全部收尾之后再决定成败；成功的钩子按注册顺序记账
		var failure error
		for i, hook := range tier {
			if results[i] == nil {
				m.mu.Lock()
				m.initialized = append(m.initialized, hook)
				m.mu.Unlock()
				continue
			}
			m.logger.Error(fmt.Sprintf("Lifecycle hook %s failed", hook.Name),
				logging.Field{Key: "error", Value: results[i].Error()})
			if failure == nil {
				failure = results[i]
			}
		}
		if failure != nil {
			return failure
		}
	}

	m.logger.Info("All lifecycle hooks started")
	return nil
}

// Stop 按初始化的逆序执行停止钩子。
// 尽力而为：单个钩子失败只记录，不阻止其余钩子执行，
// 最后把所有失败合并返回。
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	initialized := make([]*Hook, len(m.initialized))
	copy(initialized, m.initialized)
	m.initialized = nil
	m.running = false
	m.mu.Unlock()

	var errs []error
	for i := len(initialized) - 1; i >= 0; i-- {
		hook := initialized[i]
		if hook.OnStop == nil {
			continue
		}
		if err := hook.OnStop(ctx); err != nil {
			m.logger.Error(fmt.Sprintf("Lifecycle hook %s failed to stop", hook.Name),
				logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyListen 把服务器的实际监听地址广播给已启动的钩子。
// 钩子的错误只记录日志，不影响运行。
func (m *Manager) NotifyListen(ctx context.Context, addr string) {
	m.mu.Lock()
	initialized := make([]*Hook, len(m.initialized))
	copy(initialized, m.initialized)
	m.mu.Unlock()

	for _, hook := range initialized {
		if hook.OnListen == nil {
			continue
		}
		if err := hook.OnListen(ctx, addr); err != nil {
			m.logger.Warn(fmt.Sprintf("Listen hook %s failed", hook.Name),
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// groupByPriority 把钩子按优先级分层，返回从高到低的优先级序列。
func groupByPriority(hooks []*Hook) ([]int, map[int][]*Hook) {
	byTier := make(map[int][]*Hook)
	for _, hook := range hooks {
		byTier[hook.Priority] = append(byTier[hook.Priority], hook)
	}

	priorities := make([]int, 0, len(byTier))
	for priority := range byTier {
		priorities = append(priorities, priority)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))
	return priorities, byTier
}
