package table

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studiowebux/tablesync/internal/logging"
	"github.com/studiowebux/tablesync/internal/modal"
	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/types"
)

type fakeMutator struct {
	mu      sync.Mutex
	results []types.APIResult
	err     error
	updates []types.Record
	deleted []types.ID
	created []types.Record
}

func (f *fakeMutator) next() (types.APIResult, error) {
	if f.err != nil {
		return types.APIResult{}, f.err
	}
	if len(f.results) == 0 {
		return types.APIResult{Success: true, Message: "ok"}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeMutator) Create(ctx context.Context, resource string, rec types.Record) (types.APIResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, rec)
	return f.next()
}

func (f *fakeMutator) Update(ctx context.Context, resource string, id types.ID, rec types.Record) (types.APIResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, rec)
	return f.next()
}

func (f *fakeMutator) Delete(ctx context.Context, resource string, id types.ID) (types.APIResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.next()
}

func awaitActive(t *testing.T, inv *modal.Invoker, slot string) *modal.Call {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if call, ok := inv.Active(slot); ok {
			return call
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("No dialog opened in slot %q", slot)
	return nil
}

func newTestActions(t *testing.T, m *fakeMutator) (*Actions, *modal.Invoker, *notify.Recorder, *scriptedFetch) {
	t.Helper()
	f := &scriptedFetch{answer: staticPage(types.RecordSet{
		{"id": float64(1), "name": "総務部"},
		{"id": float64(2), "name": "製造部"},
	}, 2)}
	c := New(f.fetch, "", WithLogger(logging.Discard()))
	c.Mount(context.Background())
	t.Cleanup(c.Unmount)
	c.Wait()

	inv := modal.NewInvoker(modal.WithLogger(logging.Discard()))
	t.Cleanup(inv.Close)
	rec := &notify.Recorder{}
	return &Actions{
		Table:    c,
		Resource: "/department",
		Title:    "Department",
		Fields:   []string{"name"},
		API:      m,
		Modals:   inv,
		Notifier: rec,
		Logger:   logging.Discard(),
	}, inv, rec, f
}

func TestActions_EditSavesAndRefreshes(t *testing.T) {
	m := &fakeMutator{}
	a, inv, rec, f := newTestActions(t, m)

	done := make(chan error, 1)
	go func() { done <- a.Edit(context.Background(), "2") }()

	call := awaitActive(t, inv, modal.SlotForm)
	props, ok := call.Props.(modal.FormProps)
	if !ok || props.Values["name"] != "製造部" {
		t.Fatalf("Form not prefilled: %+v", call.Props)
	}
	inv.Resolve(modal.SlotForm, types.Record{"id": float64(2), "name": "品質保証部"})

	if err := <-done; err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if len(m.updates) != 1 || m.updates[0]["name"] != "品質保証部" {
		t.Errorf("Unexpected updates: %+v", m.updates)
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0].Level != notify.LevelSuccess {
		t.Errorf("Expected one success toast, got %+v", msgs)
	}
	f.mu.Lock()
	fetches := len(f.calls)
	f.mu.Unlock()
	if fetches != 2 {
		t.Errorf("Expected a refresh after saving, got %d fetches", fetches)
	}
}

func TestActions_EditFieldErrorReopensForm(t *testing.T) {
	m := &fakeMutator{results: []types.APIResult{
		{Success: false, Field: "name", Message: "Name already exists"},
		{Success: true, Message: "Updated"},
	}}
	a, inv, rec, _ := newTestActions(t, m)

	done := make(chan error, 1)
	go func() { done <- a.Edit(context.Background(), "1") }()

	first := awaitActive(t, inv, modal.SlotForm)
	inv.ResolveCall(first, types.Record{"id": float64(1), "name": "製造部"})

	var second *modal.Call
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if call, ok := inv.Active(modal.SlotForm); ok && call.ID != first.ID {
			second = call
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if second == nil {
		t.Fatal("Form not reopened after field error")
	}
	props := second.Props.(modal.FormProps)
	if props.Errors["name"] != "Name already exists" || props.Values["name"] != "製造部" {
		t.Errorf("Reopened form lost state: %+v", props)
	}
	inv.ResolveCall(second, types.Record{"id": float64(1), "name": "経理部"})

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(m.updates) != 2 {
		t.Errorf("Expected two saves, got %d", len(m.updates))
	}
	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0].Text != "Updated" {
		t.Errorf("Field error should not toast: %+v", msgs)
	}
}

func TestActions_EditCancelledDoesNothing(t *testing.T) {
	m := &fakeMutator{}
	a, inv, _, _ := newTestActions(t, m)

	done := make(chan error, 1)
	go func() { done <- a.Edit(context.Background(), "1") }()

	awaitActive(t, inv, modal.SlotForm)
	inv.Cancel(modal.SlotForm)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(m.updates) != 0 {
		t.Error("Cancelled form was saved")
	}
}

func TestActions_DeleteConfirmed(t *testing.T) {
	m := &fakeMutator{}
	a, inv, _, _ := newTestActions(t, m)

	done := make(chan error, 1)
	go func() { done <- a.Delete(context.Background(), "1") }()

	call := awaitActive(t, inv, modal.SlotConfirm)
	if call.ComponentID != ComponentConfirmDelete {
		t.Errorf("Unexpected component %q", call.ComponentID)
	}
	inv.Resolve(modal.SlotConfirm, nil)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(m.deleted) != 1 || m.deleted[0] != "1" {
		t.Errorf("Unexpected deletes: %v", m.deleted)
	}
}

func TestActions_TransportErrorToasts(t *testing.T) {
	m := &fakeMutator{err: errors.New("connection reset")}
	a, inv, rec, _ := newTestActions(t, m)

	done := make(chan error, 1)
	go func() { done <- a.Delete(context.Background(), "2") }()
	awaitActive(t, inv, modal.SlotConfirm)
	inv.Resolve(modal.SlotConfirm, nil)

	if err := <-done; err == nil {
		t.Error("Expected transport error")
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0].Level != notify.LevelError {
		t.Errorf("Expected an error toast, got %+v", msgs)
	}
}

func TestActions_UnknownRow(t *testing.T) {
	a, _, _, _ := newTestActions(t, &fakeMutator{})
	if err := a.Edit(context.Background(), "99"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("Expected ErrRowNotFound, got %v", err)
	}
}
