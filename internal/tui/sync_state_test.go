package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/studiowebux/tablesync/internal/modal"
	"github.com/studiowebux/tablesync/internal/types"
)

func TestWakeSignal_Coalesces(t *testing.T) {
	w := NewWakeSignal()
	if w.Pending() {
		t.Fatal("new signal should not be pending")
	}

	w.Notify()
	w.Notify()
	w.Notify()
	if !w.Pending() {
		t.Fatal("expected a pending wake-up")
	}

	msg := w.Wait(context.Background())()
	if _, ok := msg.(stateChangedMsg); !ok {
		t.Fatalf("got %T, want stateChangedMsg", msg)
	}
	if w.Pending() {
		t.Error("three notifications should collapse into one wake-up")
	}
}

func TestWakeSignal_WaitStopsOnCancel(t *testing.T) {
	w := NewWakeSignal()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan any, 1)
	go func() { done <- w.Wait(ctx)() }()

	cancel()
	select {
	case msg := <-done:
		if msg != nil {
			t.Errorf("got %T after cancel, want nil", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestWakeSignal_ConcurrentNotify(t *testing.T) {
	w := NewWakeSignal()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Notify()
		}()
	}
	wg.Wait()

	if !w.Pending() {
		t.Fatal("expected a pending wake-up")
	}
	w.Wait(context.Background())()
	if w.Pending() {
		t.Error("expected exactly one pending wake-up")
	}
}

func TestSessionState_CancelTwice(t *testing.T) {
	s := NewSessionState(context.Background())
	if s.Done() {
		t.Fatal("new session should be live")
	}
	s.Cancel()
	s.Cancel()
	if !s.Done() {
		t.Error("session should be done after Cancel")
	}
	if s.Context().Err() != context.Canceled {
		t.Errorf("Context().Err() = %v", s.Context().Err())
	}
}

func TestFormState_RecordKeepsTypes(t *testing.T) {
	call := &modal.Call{
		Slot: modal.SlotForm,
		Props: modal.FormProps{
			Title:  "Edit",
			Fields: []string{"name", "sort", "active"},
			Values: types.Record{"id": float64(7), "name": "総務部", "sort": float64(1000), "active": true},
		},
	}
	f := NewFormState(call)

	f.SetValue("name", "人事部")
	f.SetValue("sort", "2500")
	f.SetValue("active", "false")
	if f.SetValue("missing", "x") {
		t.Error("SetValue accepted an unknown field")
	}

	rec := f.Record()
	if rec["name"] != "人事部" {
		t.Errorf("name = %v", rec["name"])
	}
	if rec["sort"] != float64(2500) {
		t.Errorf("sort = %#v, want float64(2500)", rec["sort"])
	}
	if rec["active"] != false {
		t.Errorf("active = %#v, want false", rec["active"])
	}
	if rec["id"] != float64(7) {
		t.Errorf("id = %#v, untouched fields must be kept", rec["id"])
	}

	f.SetValue("sort", "soon")
	if got := f.Record()["sort"]; got != "soon" {
		t.Errorf("unparseable number = %#v, want the raw text", got)
	}
}

func TestFormState_FocusWraps(t *testing.T) {
	call := &modal.Call{Props: modal.FormProps{Fields: []string{"a", "b"}, Values: types.Record{}}}
	f := NewFormState(call)

	f.NextField()
	f.NextField()
	if f.focus != 0 {
		t.Errorf("focus = %d after wrapping forward", f.focus)
	}
	f.PrevField()
	if f.focus != 1 {
		t.Errorf("focus = %d after wrapping back", f.focus)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		w    int
		want string
	}{
		{"pads", "ab", 4, "ab  "},
		{"exact", "abcd", 4, "abcd"},
		{"truncates", "abcdef", 4, "abc…"},
		{"wide pads", "総務", 6, "総務  "},
		{"wide truncates", "品質保証部", 6, "品質… "},
		{"wide odd width", "品質保証部", 5, "品質…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fit(tt.in, tt.w); got != tt.want {
				t.Errorf("fit(%q, %d) = %q, want %q", tt.in, tt.w, got, tt.want)
			}
		})
	}
}

func TestNextPageSize(t *testing.T) {
	tests := []struct {
		current, want int
	}{
		{5, 10},
		{10, 20},
		{20, 50},
		{50, 5},
		{7, 5},
	}
	for _, tt := range tests {
		if got := nextPageSize(tt.current); got != tt.want {
			t.Errorf("nextPageSize(%d) = %d, want %d", tt.current, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("delete the row named 総務部 now", 12)
	want := "delete the\nrow named\n総務部 now"
	if got != want {
		t.Errorf("wrapText = %q, want %q", got, want)
	}
}

func TestPickerState_SetQuery(t *testing.T) {
	p := NewPickerState(testTables(), "department")

	if def, ok := p.Selected(); !ok || def.Name != "department" {
		t.Fatalf("Empty query should list tables in order, got %v %v", def.Name, ok)
	}
	p.Down()
	if def, _ := p.Selected(); def.Name != "line" {
		t.Errorf("Down selected %q", def.Name)
	}

	p.SetQuery("dep")
	if def, ok := p.Selected(); !ok || def.Name != "department" {
		t.Errorf("Query should select department, got %q", def.Name)
	}

	p.SetQuery("zz")
	if _, ok := p.Selected(); ok {
		t.Error("Expected no match")
	}
}
