package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()

	data := map[string]any{"key": "value"}
	store.Store(data)

	loaded := store.Load()
	if loaded["key"] != "value" {
		t.Error("Load failed")
	}

	// 并发读取
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	path := "a:b.c"
	parts := cache.GetPathSegments(path)

	if len(parts) != 3 {
		t.Errorf("Expected 3 parts, got %d", len(parts))
	}
	if parts[0] != "a" || parts[1] != "b" || parts[2] != "c" {
		t.Error("Parse failed")
	}

	// 缓存命中
	parts2 := cache.GetPathSegments(path)
	if len(parts2) != 3 {
		t.Errorf("Expected 3 parts on second call, got %d", len(parts2))
	}
}

func TestBuilderMergePrecedence(t *testing.T) {
	config, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{"host": "localhost", "port": 8080},
			"name":   "base",
		}).
		AddInMemory(map[string]any{
			"server": map[string]any{"port": 9090},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 后加的源覆盖前面的，未覆盖的键保留
	if port, _ := config.GetInt("server:port"); port != 9090 {
		t.Errorf("Expected overridden port 9090, got %d", port)
	}
	if host := config.Get("server:host"); host != "localhost" {
		t.Errorf("Expected host from base source, got %q", host)
	}
	if name := config.Get("name"); name != "base" {
		t.Errorf("Expected name from base source, got %q", name)
	}
}

func TestTypedGetters(t *testing.T) {
	config, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"port":    8080,
			"debug":   true,
			"ratio":   "0.5",
			"retries": "3",
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if v := config.Get("port"); v != "8080" {
		t.Errorf("Get(port) = %q", v)
	}
	if n, err := config.GetInt("retries"); err != nil || n != 3 {
		t.Errorf("GetInt(retries) = %d, %v", n, err)
	}
	if b, err := config.GetBool("debug"); err != nil || !b {
		t.Errorf("GetBool(debug) = %v, %v", b, err)
	}
	if _, err := config.GetInt("missing"); err == nil {
		t.Error("GetInt on missing key must fail")
	}
	if v := config.GetWithDefault("missing", "fallback"); v != "fallback" {
		t.Errorf("GetWithDefault = %q", v)
	}

	// . 与 : 分隔符等价
	nested, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"a": map[string]any{"b": "c"}}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if nested.Get("a:b") != "c" || nested.Get("a.b") != "c" {
		t.Error("Both separators must resolve")
	}
}

func TestGetSection(t *testing.T) {
	config, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"database": map[string]any{"dsn": "file:test.db", "pool": 4},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	section := config.GetSection("database")
	if section.Get("dsn") != "file:test.db" {
		t.Errorf("Section Get failed: %q", section.Get("dsn"))
	}
	if n, _ := section.GetInt("pool"); n != 4 {
		t.Errorf("Section GetInt failed: %d", n)
	}

	// 不存在的节返回空配置而不是 nil
	empty := config.GetSection("nope")
	if empty == nil {
		t.Fatal("Missing section must not be nil")
	}
	if empty.Get("anything") != "" {
		t.Error("Missing section must be empty")
	}
}

func TestBind(t *testing.T) {
	type ServerSettings struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	config, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{"host": "0.0.0.0", "port": 8080},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var settings ServerSettings
	if err := config.Bind("server", &settings); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if settings.Host != "0.0.0.0" || settings.Port != 8080 {
		t.Errorf("Bind produced %+v", settings)
	}

	// 泛型辅助
	loaded, err := Load[ServerSettings](config, "server")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Port != 8080 {
		t.Errorf("Load produced %+v", loaded)
	}

	if err := config.Bind("missing", &settings); err == nil {
		t.Error("Bind on missing key must fail")
	}
}

func TestYamlFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	content := "server:\n  host: example.com\n  port: 443\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := NewConfigurationBuilder().AddYamlFile(path).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if config.Get("server:host") != "example.com" {
		t.Errorf("Got host %q", config.Get("server:host"))
	}
	if port, _ := config.GetInt("server:port"); port != 443 {
		t.Errorf("Got port %d", port)
	}

	// 缺失的必需文件让 Build 失败
	if _, err := NewConfigurationBuilder().AddYamlFile(filepath.Join(t.TempDir(), "absent.yaml")).Build(); err == nil {
		t.Error("Required missing file must fail the build")
	}

	// 可选文件缺失则跳过
	config, err = NewConfigurationBuilder().
		AddYamlFile(filepath.Join(t.TempDir(), "absent.yaml"), true).
		AddInMemory(map[string]any{"ok": true}).
		Build()
	if err != nil {
		t.Fatalf("Optional missing file must not fail: %v", err)
	}
	if ok, _ := config.GetBool("ok"); !ok {
		t.Error("Remaining sources must still load")
	}
}

func TestJsonFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	if err := os.WriteFile(path, []byte(`{"cache":{"ttl":30}}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := NewConfigurationBuilder().AddJsonFile(path).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if ttl, _ := config.GetInt("cache:ttl"); ttl != 30 {
		t.Errorf("Got ttl %d", ttl)
	}
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "9191")
	t.Setenv("MYAPP_DEBUG", "true")
	t.Setenv("OTHER_IGNORED", "x")

	config, err := NewConfigurationBuilder().AddEnvironmentVariables("MYAPP_").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 前缀剥离、小写化、_ 转路径分隔符
	if port, err := config.GetInt("server:port"); err != nil || port != 9191 {
		t.Errorf("GetInt(server:port) = %d, %v", port, err)
	}
	if debug, err := config.GetBool("debug"); err != nil || !debug {
		t.Errorf("GetBool(debug) = %v, %v", debug, err)
	}
	if config.Get("other:ignored") != "" {
		t.Error("Variables outside the prefix must be ignored")
	}
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte("port: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := NewConfigurationBuilder().AddYamlFile(path).BuildReloadable()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if port, _ := config.GetInt("port"); port != 1 {
		t.Fatalf("Initial port = %d", port)
	}

	fired := 0
	config.OnReload(func() { fired++ })

	if err := os.WriteFile(path, []byte("port: 2\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := config.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if port, _ := config.GetInt("port"); port != 2 {
		t.Errorf("Reloaded port = %d", port)
	}
	if fired != 1 {
		t.Errorf("Expected 1 reload callback, got %d", fired)
	}

	// 节视图不支持重载
	section, ok := config.GetSection("port").(Reloadable)
	if ok {
		if err := section.Reload(); err == nil {
			t.Error("Section reload must fail")
		}
	}
}

func TestOptionsCacheFollowsReload(t *testing.T) {
	type Limits struct {
		Max int `json:"max"`
	}

	path := filepath.Join(t.TempDir(), "app.json")
	if err := os.WriteFile(path, []byte(`{"limits":{"max":10}}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := NewConfigurationBuilder().AddJsonFile(path).BuildReloadable()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cache := NewOptionsCache[Limits](config, "limits")
	if cache.Get().Max != 10 {
		t.Fatalf("Initial Max = %d", cache.Get().Max)
	}

	if err := os.WriteFile(path, []byte(`{"limits":{"max":20}}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := config.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	// OptionsCache 通过 OnReload 回调自动刷新
	if cache.Get().Max != 20 {
		t.Errorf("Max after reload = %d", cache.Get().Max)
	}

	monitor := NewOptionMonitor(cache)
	if monitor.Value().Max != 20 {
		t.Errorf("Monitor Value = %d", monitor.Value().Max)
	}
}

func BenchmarkConfigGet(b *testing.B) {
	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
		},
	})
	config, _ := builder.Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config.Get("server:host")
	}
}
