package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/studiowebux/tablesync/internal/auth"
	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/logging"
	"github.com/studiowebux/tablesync/internal/mock"
	"github.com/studiowebux/tablesync/internal/types"
)

const departments = "/api/general/department"

// syncBuffer is written by push callbacks while the test reads it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func testTables() *config.Tables {
	return &config.Tables{Tables: []config.TableDef{
		{Name: "department", Title: "Departments", Resource: departments, ResourceKey: "departments",
			Columns: []string{"name"}, Editable: []string{"name"}, Reorderable: true, Scope: "総務部"},
		{Name: "employee", Title: "Employees", Resource: "/api/general/employee", ResourceKey: "employees",
			Columns: []string{"employee_no", "name"}},
	}}
}

func newTestEnv(t *testing.T) (*Env, *syncBuffer, *mock.Server) {
	t.Helper()
	dir := t.TempDir()

	cfg := mock.DefaultConfig()
	store, err := mock.OpenStore(filepath.Join(dir, "mock.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Seed(context.Background(), cfg); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	srv := mock.NewServer(cfg, store, mock.WithLogger(logging.Discard()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().CloseAll()
		ts.Close()
		srv.Flush()
	})

	out := &syncBuffer{}
	env := &Env{
		Settings: &config.Settings{
			BaseURL:        ts.URL,
			Output:         FormatTable,
			Table:          "department",
			RequestTimeout: 5 * time.Second,
		},
		Tables: testTables(),
		Auth:   auth.NewService(ts.URL, filepath.Join(dir, "session.json"), auth.WithLogger(logging.Discard())),
		Logger: logging.Discard(),
		Out:    out,
	}
	env.Client = env.newClient()
	return env, out, srv
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestList_TableOutput(t *testing.T) {
	env, out, _ := newTestEnv(t)

	if err := List(context.Background(), env, ListOptions{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	// go-pretty may upper-case the header and footer
	got := strings.ToLower(out.String())
	for _, want := range []string{"departments", "総務部", "品質保証部", "page 1/1", "4 rows"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestList_JSONOutputWithSearch(t *testing.T) {
	env, out, _ := newTestEnv(t)

	err := List(context.Background(), env, ListOptions{Table: "department", Search: "製造", Output: FormatJSON})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var view pageView
	if err := json.Unmarshal([]byte(out.String()), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if view.TotalCount != 1 || len(view.Rows) != 1 || view.Rows[0]["name"] != "製造部" {
		t.Errorf("unexpected page: %+v", view)
	}
	if view.Page != 1 || view.Table != "department" {
		t.Errorf("unexpected header: page=%d table=%q", view.Page, view.Table)
	}
}

func TestList_YAMLOutput(t *testing.T) {
	env, out, _ := newTestEnv(t)

	if err := List(context.Background(), env, ListOptions{Output: FormatYAML, PageSize: 5}); err != nil {
		t.Fatalf("List: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "totalCount: 4") || !strings.Contains(got, "pageSize: 5") {
		t.Errorf("unexpected yaml:\n%s", got)
	}
}

func TestList_Query(t *testing.T) {
	env, out, _ := newTestEnv(t)

	if err := List(context.Background(), env, ListOptions{Query: "[].name"}); err != nil {
		t.Fatalf("List: %v", err)
	}

	var got []string
	if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out.String())
	}
	want := []string{"総務部", "製造部", "品質保証部", "管理者"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts ListOptions
		want string
	}{
		{"unknown table", ListOptions{Table: "nope"}, "unknown table"},
		{"bad page size", ListOptions{PageSize: 7}, "invalid page size"},
		{"bad format", ListOptions{Output: "xml"}, "unsupported output format"},
		{"bad query", ListOptions{Query: "[.name"}, "invalid query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, _ := newTestEnv(t)
			err := List(context.Background(), env, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSort_MovesRowAndPersists(t *testing.T) {
	env, out, _ := newTestEnv(t)
	ctx := context.Background()

	if err := Sort(ctx, env, SortOptions{Table: "department", From: 3, To: 1}); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "品質保証部, 総務部, 製造部, 管理者") {
		t.Errorf("unexpected order: %s", got)
	}

	page, err := env.Client.Fetch(ctx, departments, "departments", types.QueryParams{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if page.Rows[0]["name"] != "品質保証部" || page.Rows[1]["name"] != "総務部" {
		t.Errorf("order not persisted: %v", page.Rows)
	}
}

func TestSort_Rejects(t *testing.T) {
	tests := []struct {
		name string
		opts SortOptions
		want string
	}{
		{"not reorderable", SortOptions{Table: "employee", From: 1, To: 2}, "not reorderable"},
		{"out of range", SortOptions{Table: "department", From: 1, To: 9}, "between 1 and 4"},
		{"same position", SortOptions{Table: "department", From: 2, To: 2}, "nothing to move"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, _ := newTestEnv(t)
			err := Sort(context.Background(), env, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLogin_WhoAmI_Logout(t *testing.T) {
	env, out, _ := newTestEnv(t)
	ctx := context.Background()

	if err := Login(ctx, env, LoginOptions{EmployeeNo: "0001", Password: "admin"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !strings.Contains(out.String(), "管理 太郎 [0001]: 管理者 (admin)") {
		t.Errorf("unexpected login output: %s", out.String())
	}
	if !env.Auth.IsAuthenticated() {
		t.Fatal("expected an authenticated session")
	}

	out.Reset()
	if err := WhoAmI(ctx, env); err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if !strings.Contains(out.String(), "0001") {
		t.Errorf("unexpected whoami output: %s", out.String())
	}

	out.Reset()
	if err := Logout(ctx, env); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if env.Auth.Token() != "" {
		t.Error("token kept after logout")
	}
	if err := WhoAmI(ctx, env); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("WhoAmI after logout = %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env, _, _ := newTestEnv(t)

	err := Login(context.Background(), env, LoginOptions{EmployeeNo: "0001", Password: "nope"})
	if err == nil {
		t.Fatal("expected login to fail")
	}
	if env.Auth.IsAuthenticated() {
		t.Error("failed login left a session")
	}
}

func TestWatch_PrintsPushedRows(t *testing.T) {
	env, out, srv := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, env, WatchOptions{Output: FormatJSON})
	}()

	eventually(t, "initial page", func() bool { return strings.Contains(out.String(), "総務部") })
	eventually(t, "subscriber", func() bool { return srv.Hub().Count(departments) == 1 })

	result, err := env.Client.Update(ctx, departments, types.ID("2"), types.Record{"name": "製造一部"})
	if err != nil || !result.Success {
		t.Fatalf("Update: %+v %v", result, err)
	}
	eventually(t, "pushed rows", func() bool { return strings.Contains(out.String(), "製造一部") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestEnv_Reconnect(t *testing.T) {
	env := &Env{Settings: &config.Settings{}}
	if env.Reconnect() != nil {
		t.Error("reconnect should be off when disabled")
	}

	env.Settings.Reconnect = config.ReconnectConfig{Enabled: true, Initial: time.Second, MaxAttempts: 3}
	p := env.Reconnect()
	if p == nil {
		t.Fatal("expected a policy")
	}
	if p.Initial != time.Second || p.MaxAttempts != 3 || p.Max <= 0 {
		t.Errorf("unexpected policy %+v", p)
	}
}

func TestDescribeUser(t *testing.T) {
	u := types.User{Name: "製造 花子", EmployeeNo: "1001", Departments: []types.Department{{Name: "製造部", Admin: true}, {Name: "品質保証部"}}}
	if got, want := describeUser(u), "製造 花子 [1001]: 製造部 (admin), 品質保証部"; got != want {
		t.Errorf("describeUser = %q, want %q", got, want)
	}
}
