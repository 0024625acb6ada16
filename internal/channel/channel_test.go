package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studiowebux/tablesync/internal/logging"
	"github.com/studiowebux/tablesync/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func newWSServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/department"
}

func readSubscribe(t *testing.T, conn *websocket.Conn) (subscribeMessage, error) {
	t.Helper()
	var msg subscribeMessage
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(data, &msg)
	return msg, err
}

type rowsRecorder struct {
	mu   sync.Mutex
	sets []types.RecordSet
	ch   chan struct{}
}

func newRowsRecorder() *rowsRecorder {
	return &rowsRecorder{ch: make(chan struct{}, 16)}
}

func (r *rowsRecorder) replace(rows types.RecordSet) {
	r.mu.Lock()
	r.sets = append(r.sets, rows)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *rowsRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for replacement")
	}
}

func (r *rowsRecorder) all() []types.RecordSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.RecordSet(nil), r.sets...)
}

func TestChannel_SendBeforeOpenFlushesLatest(t *testing.T) {
	received := make(chan subscribeMessage, 4)
	var gotToken atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.URL.Query().Get("token"))
		time.Sleep(100 * time.Millisecond)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msg, err := readSubscribe(t, conn)
			if err != nil {
				return
			}
			received <- msg
		}
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/department"

	ch, err := Open(context.Background(), wsURL, "secret", nil, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ch.Close()

	ch.Send(types.QueryParams{SearchText: "a", Page: 1, PageSize: 10})
	ch.Send(types.QueryParams{SearchText: "ab", Page: 1, PageSize: 20})

	select {
	case msg := <-received:
		if msg.Action != "subscribe" {
			t.Errorf("Expected subscribe action, got %q", msg.Action)
		}
		if msg.SearchText != "ab" || msg.PageSize != 20 {
			t.Errorf("Expected only the latest params to be flushed, got %+v", msg.QueryParams)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No subscribe message received")
	}

	select {
	case msg := <-received:
		t.Errorf("Stale params were sent: %+v", msg.QueryParams)
	case <-time.After(100 * time.Millisecond):
	}

	if gotToken.Load() != "secret" {
		t.Errorf("Expected token query param, got %v", gotToken.Load())
	}
}

func TestChannel_PushReplacesRows(t *testing.T) {
	wsURL := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		if _, err := readSubscribe(t, conn); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"updated_data":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"updated_data":[{"id":3,"name":"C"}]}`))
		conn.ReadMessage()
	})

	rec := newRowsRecorder()
	ch, err := Open(context.Background(), wsURL, "", rec.replace, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	ch.Send(types.DefaultQueryParams())

	rec.wait(t)
	rec.wait(t)

	sets := rec.all()
	if len(sets) != 2 {
		t.Fatalf("Expected 2 replacements, got %d", len(sets))
	}
	last := sets[1]
	if len(last) != 1 || last[0].ID() != "3" {
		t.Errorf("Expected rows to equal the last push exactly, got %v", last)
	}
}

func TestChannel_DropsUnparseableMessages(t *testing.T) {
	wsURL := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		if _, err := readSubscribe(t, conn); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"other":[]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"updated_data":[{"id":1},{"id":1}]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"updated_data":[{"id":9}]}`))
		conn.ReadMessage()
	})

	rec := newRowsRecorder()
	ch, err := Open(context.Background(), wsURL, "", rec.replace, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	ch.Send(types.DefaultQueryParams())

	rec.wait(t)

	sets := rec.all()
	if len(sets) != 1 || sets[0][0].ID() != "9" {
		t.Errorf("Expected only the valid push to be delivered, got %v", sets)
	}
	if ch.State() != StateOpen {
		t.Errorf("Expected channel to stay open, got %s", ch.State())
	}
}

func TestChannel_OnCloseWithoutReconnect(t *testing.T) {
	wsURL := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})

	closed := make(chan error, 1)
	ch, err := Open(context.Background(), wsURL, "", nil,
		WithLogger(logging.Discard()),
		WithOnClose(func(err error) { closed <- err }))
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	select {
	case err := <-closed:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}

	if ch.State() != StateClosed {
		t.Errorf("Expected Closed state, got %s", ch.State())
	}

	// a stopped handle may be reopened
	if err := ch.Reopen(context.Background()); err != nil {
		t.Errorf("Reopen after server close failed: %v", err)
	}
}

func TestChannel_ReconnectResendsLastParams(t *testing.T) {
	var conns int32
	second := make(chan subscribeMessage, 1)

	wsURL := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		n := atomic.AddInt32(&conns, 1)
		msg, err := readSubscribe(t, conn)
		if err != nil {
			return
		}
		if n == 1 {
			// drop the first connection abruptly
			conn.UnderlyingConn().Close()
			return
		}
		second <- msg
		conn.ReadMessage()
	})

	var mu sync.Mutex
	var states []State
	ch, err := Open(context.Background(), wsURL, "", nil,
		WithLogger(logging.Discard()),
		WithReconnect(ReconnectPolicy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2}),
		WithOnState(func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	params := types.QueryParams{SearchText: "x", Page: 3, PageSize: 5}
	ch.Send(params)

	select {
	case msg := <-second:
		if msg.QueryParams != params {
			t.Errorf("Expected last params resent, got %+v", msg.QueryParams)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Channel did not reconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	sawReconnecting := false
	for _, s := range states {
		if s == StateReconnecting {
			sawReconnecting = true
		}
	}
	if !sawReconnecting {
		t.Errorf("Expected Reconnecting state, got %v", states)
	}
}

func TestChannel_ReopenWhileOpen(t *testing.T) {
	wsURL := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.ReadMessage()
	})

	ch, err := Open(context.Background(), wsURL, "", nil, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	if err := ch.Reopen(context.Background()); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("Expected ErrAlreadyOpen, got %v", err)
	}
}

func TestChannel_NoReplaceAfterClose(t *testing.T) {
	release := make(chan struct{})
	wsURL := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		if _, err := readSubscribe(t, conn); err != nil {
			return
		}
		<-release
		conn.WriteMessage(websocket.TextMessage, []byte(`{"updated_data":[]}`))
	})

	var calls int32
	ch, err := Open(context.Background(), wsURL, "", func(types.RecordSet) { atomic.AddInt32(&calls, 1) },
		WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	ch.Send(types.DefaultQueryParams())

	time.Sleep(50 * time.Millisecond)
	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	close(release)
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("onReplace called after Close")
	}
	if ch.State() != StateClosed {
		t.Errorf("Expected Closed, got %s", ch.State())
	}

	// sending on a closed channel is a no-op
	ch.Send(types.DefaultQueryParams())
}

func TestOpen_RejectsNonWebsocketURL(t *testing.T) {
	if _, err := Open(context.Background(), "http://localhost/ws/x", "", nil); err == nil {
		t.Error("Expected error for http scheme")
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		base, resource, want string
		wantErr              bool
	}{
		{"http://localhost:8000", "department", "ws://localhost:8000/ws/department", false},
		{"https://example.com/", "/api/general/employee", "wss://example.com/ws/employee", false},
		{"http://host/base", "line", "ws://host/base/ws/line", false},
		{"ftp://host", "line", "", true},
		{"http://host", "", "", true},
	}

	for _, tt := range tests {
		got, err := EndpointURL(tt.base, tt.resource)
		if tt.wantErr {
			if err == nil {
				t.Errorf("EndpointURL(%q, %q) expected error", tt.base, tt.resource)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("EndpointURL(%q, %q) = %q, %v; want %q", tt.base, tt.resource, got, err, tt.want)
		}
	}
}

func TestReconnectPolicy_Delay(t *testing.T) {
	p := ReconnectPolicy{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2}
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
	if got := p.Delay(20); got != 30*time.Second {
		t.Errorf("Expected delay capped at max, got %v", got)
	}

	bounded := ReconnectPolicy{MaxAttempts: 2}
	if !bounded.allows(1) || bounded.allows(2) {
		t.Error("MaxAttempts not honoured")
	}
	if !(ReconnectPolicy{}).allows(1000) {
		t.Error("Zero MaxAttempts should be unlimited")
	}
}

func TestDecodeReplacement(t *testing.T) {
	rows, err := DecodeReplacement([]byte(`{"updated_data":[]}`))
	if err != nil || len(rows) != 0 {
		t.Errorf("Empty replacement should decode to empty set, got %v %v", rows, err)
	}

	for _, bad := range []string{`[]`, `{"updated_data":null}`, `{"updated_data":[null]}`, `{"updated_data":[{"name":"x"}]}`} {
		if _, err := DecodeReplacement([]byte(bad)); err == nil {
			t.Errorf("Expected error for %s", bad)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "connecting"},
		{StateOpen, "open"},
		{StateReconnecting, "reconnecting"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
