package logging

// NewLogger 创建一个默认的控制台 Logger（便于测试使用）
func NewLogger() Logger {
	builder := NewLoggingBuilder()
	builder.AddConsole()
	factory := builder.Build()
	return factory.CreateLogger("default")
}

// NewNopLogger 创建一个丢弃所有日志的 Logger
func NewNopLogger() Logger {
	return nopLogger{}
}

// nopLogger 空实现，所有方法都是无操作
type nopLogger struct{}

func (nopLogger) Trace(string, ...Field) {}

func (nopLogger) Debug(string, ...Field) {}

func (nopLogger) Info(string, ...Field) {}

func (nopLogger) Warn(string, ...Field) {}

func (nopLogger) Error(string, ...Field) {}

func (nopLogger) Fatal(string, ...Field) {}

func (nopLogger) Log(LogLevel, string, ...Field) {}

func (n nopLogger) WithFields(...Field) Logger { return n }

func (n nopLogger) WithCategory(string) Logger { return n }
