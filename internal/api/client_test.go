package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/studiowebux/tablesync/internal/logging"
	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/types"
)

type fakeRefresher struct {
	calls int32
	err   error
	token *atomic.Value
}

func (f *fakeRefresher) RefreshToken(ctx context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return f.err
	}
	f.token.Store("fresh")
	return nil
}

func TestClient_FetchSendsQueryParams(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/general/department" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		gotQuery = map[string]string{
			"searchQuery":  r.URL.Query().Get("searchQuery"),
			"currentPage":  r.URL.Query().Get("currentPage"),
			"itemsPerPage": r.URL.Query().Get("itemsPerPage"),
		}
		w.Write([]byte(`{"departments":[{"id":1,"name":"A"},{"id":2,"name":"B"}],"totalCount":12}`))
	}))
	defer server.Close()

	c := New(server.URL, WithLogger(logging.Discard()))
	page, err := c.Fetch(context.Background(), "/api/general/department", "departments",
		types.QueryParams{SearchText: "総", Page: 2, PageSize: 5})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotQuery["searchQuery"] != "総" || gotQuery["currentPage"] != "2" || gotQuery["itemsPerPage"] != "5" {
		t.Errorf("Unexpected query: %v", gotQuery)
	}
	if len(page.Rows) != 2 || page.TotalCount != 12 {
		t.Errorf("Unexpected page: %+v", page)
	}
	if page.Rows[1].ID() != "2" {
		t.Errorf("Expected second id 2, got %q", page.Rows[1].ID())
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		path    string
		want    int
		total   int
		wantErr bool
	}{
		{"resource key", `{"lines":[{"id":1}],"totalCount":3}`, "lines", 1, 3, false},
		{"nested path", `{"data":{"items":[{"id":"a"},{"id":"b"}]}}`, "data.items", 2, 2, false},
		{"missing key", `{"other":[]}`, "lines", 0, 0, true},
		{"not an array", `{"lines":{"id":1}}`, "lines", 0, 0, true},
		{"duplicate ids", `{"lines":[{"id":1},{"id":1}]}`, "lines", 0, 0, true},
		{"bad json", `{`, "lines", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParsePage([]byte(tt.body), tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %+v", page)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(page.Rows) != tt.want || page.TotalCount != tt.total {
				t.Errorf("Got %d rows / total %d, want %d / %d", len(page.Rows), page.TotalCount, tt.want, tt.total)
			}
		})
	}
}

func TestClient_MutationsReturnResult(t *testing.T) {
	var method, path string
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = nil
		json.Unmarshal(data, &body)

		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"message":"部署名が重複しています","field":"name"}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()

	res, err := c.Create(ctx, "/api/general/department", types.Record{"name": "A"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.Success || res.Field != "name" {
		t.Errorf("Expected field error result, got %+v", res)
	}
	if body["name"] != "A" {
		t.Errorf("Create body not sent: %v", body)
	}

	res, err = c.Update(ctx, "/api/general/department", "3", types.Record{"name": "B"})
	if err != nil || !res.Success {
		t.Fatalf("Update failed: %v %+v", err, res)
	}
	if method != http.MethodPut || path != "/api/general/department/3" {
		t.Errorf("Unexpected update request %s %s", method, path)
	}

	if _, err := c.Delete(ctx, "/api/general/department", "3"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("Expected DELETE, got %s", method)
	}
}

func TestClient_SortSendsAssignments(t *testing.T) {
	var got []types.SortAssignment
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/general/department/sort" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true,"message":"sorted"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	assignments := []types.SortAssignment{{ID: float64(2), SortKey: 1000}, {ID: float64(1), SortKey: 2000}}
	if _, err := c.Sort(context.Background(), "/api/general/department", assignments); err != nil {
		t.Fatalf("Sort failed: %v", err)
	}

	if len(got) != 2 || got[0].SortKey != 1000 || types.IDOf(got[1].ID) != "1" {
		t.Errorf("Unexpected sort payload: %+v", got)
	}
}

func TestClient_RefreshesOnceOn401(t *testing.T) {
	token := &atomic.Value{}
	token.Store("stale")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"lines":[],"totalCount":0}`))
	}))
	defer server.Close()

	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		r.Header.Set("X-Token", token.Load().(string))
		return http.DefaultTransport.RoundTrip(r)
	})}

	refresher := &fakeRefresher{token: token}
	c := New(server.URL, WithHTTPClient(httpClient), WithRefresher(refresher))

	if _, err := c.Fetch(context.Background(), "/lines", "lines", types.DefaultQueryParams()); err != nil {
		t.Fatalf("Fetch after refresh failed: %v", err)
	}
	if refresher.calls != 1 {
		t.Errorf("Expected one refresh, got %d", refresher.calls)
	}

	token.Store("stale")
	refresher.err = errors.New("refresh rejected")
	_, err := c.Fetch(context.Background(), "/lines", "lines", types.DefaultQueryParams())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDispatch(t *testing.T) {
	t.Run("success runs callback and toasts", func(t *testing.T) {
		rec := &notify.Recorder{}
		called := false
		Dispatch(types.APIResult{Success: true, Message: "saved"}, nil, rec, func() { called = true })

		if !called {
			t.Error("onSuccess not called")
		}
		msgs := rec.Messages()
		if len(msgs) != 1 || msgs[0].Level != notify.LevelSuccess || msgs[0].Text != "saved" {
			t.Errorf("Unexpected toasts: %+v", msgs)
		}
	})

	t.Run("known field goes to handler", func(t *testing.T) {
		rec := &notify.Recorder{}
		var fieldMsg string
		fields := FieldHandlers{"name": func(m string) { fieldMsg = m }}
		Dispatch(types.APIResult{Message: "duplicate", Field: "name"}, fields, rec, nil)

		if fieldMsg != "duplicate" {
			t.Errorf("Field handler got %q", fieldMsg)
		}
		if len(rec.Messages()) != 0 {
			t.Errorf("Field error must not toast: %+v", rec.Messages())
		}
	})

	t.Run("unknown field toasts error", func(t *testing.T) {
		rec := &notify.Recorder{}
		called := false
		Dispatch(types.APIResult{Message: "boom", Field: "other"}, FieldHandlers{"name": func(string) {}}, rec, func() { called = true })

		if called {
			t.Error("onSuccess called on failure")
		}
		msgs := rec.Messages()
		if len(msgs) != 1 || msgs[0].Level != notify.LevelError {
			t.Errorf("Expected error toast, got %+v", msgs)
		}
	})
}
