package pipeline

import "testing"

func noopHandler(ctx *ExecutionContext) (any, error) {
	return nil, nil
}

func TestTableMatch(t *testing.T) {
	table := NewTable()
	mustAdd := func(method, path string) {
		t.Helper()
		if err := table.Add(Route{Method: method, Path: path, Handler: noopHandler}); err != nil {
			t.Fatalf("Add %s %s failed: %v", method, path, err)
		}
	}

	mustAdd("GET", "/users")
	mustAdd("GET", "/users/:id")
	mustAdd("POST", "/users")
	mustAdd("GET", "/users/:id/posts/:postID")
	mustAdd("GET", "/")

	cases := []struct {
		method, path string
		wantPath     string
		wantParams   map[string]string
		wantMatch    bool
	}{
		{"GET", "/users", "/users", nil, true},
		{"get", "/users", "/users", nil, true},
		{"GET", "/users/", "/users", nil, true},
		{"GET", "/users/42", "/users/:id", map[string]string{"id": "42"}, true},
		{"POST", "/users", "/users", nil, true},
		{"GET", "/users/7/posts/99", "/users/:id/posts/:postID", map[string]string{"id": "7", "postID": "99"}, true},
		{"GET", "/", "/", nil, true},
		{"DELETE", "/users", "", nil, false},
		{"GET", "/missing", "", nil, false},
		{"GET", "/users/42/extra", "", nil, false},
	}

	for _, tc := range cases {
		route, params, ok := table.Match(tc.method, tc.path)
		if ok != tc.wantMatch {
			t.Fatalf("%s %s: match=%v, want %v", tc.method, tc.path, ok, tc.wantMatch)
		}
		if !ok {
			continue
		}
		if route.Path != tc.wantPath {
			t.Fatalf("%s %s: matched %s, want %s", tc.method, tc.path, route.Path, tc.wantPath)
		}
		for name, want := range tc.wantParams {
			if params[name] != want {
				t.Fatalf("%s %s: param %s=%q, want %q", tc.method, tc.path, name, params[name], want)
			}
		}
	}
}

// 注册顺序决定命中顺序
func TestTableRegistrationOrderWins(t *testing.T) {
	table := NewTable()
	if err := table.Add(Route{Method: "GET", Path: "/users/:id", Handler: noopHandler, Name: "param"}); err != nil {
		t.Fatal(err)
	}
	if err := table.Add(Route{Method: "GET", Path: "/users/me", Handler: noopHandler, Name: "static"}); err != nil {
		t.Fatal(err)
	}

	route, params, ok := table.Match("GET", "/users/me")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Name != "param" {
		t.Fatalf("first registered route should win, got %s", route.Name)
	}
	if params["id"] != "me" {
		t.Fatalf("expected id=me, got %q", params["id"])
	}
}

func TestTableRejectsInvalidRoutes(t *testing.T) {
	table := NewTable()
	if err := table.Add(Route{Method: "GET", Path: "/x"}); err == nil {
		t.Fatal("expected error for route without handler")
	}
	if err := table.Add(Route{Path: "/x", Handler: noopHandler}); err == nil {
		t.Fatal("expected error for route without method")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"users":   "/users",
		"/users/": "/users",
		"/a/b/":   "/a/b",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
