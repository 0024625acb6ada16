package menu

import (
	"testing"

	"github.com/studiowebux/tablesync/internal/logging"
	"github.com/studiowebux/tablesync/internal/types"
)

func TestOpen_ShowsMenuAtPointer(t *testing.T) {
	c := New(nil, WithLogger(logging.Discard()))
	ev := &MouseEvent{X: 12, Y: 34}

	if !c.Open(ev, "7", "") {
		t.Fatal("Open returned false")
	}
	if !ev.Prevented {
		t.Error("Platform menu not suppressed")
	}

	state := c.State()
	if !state.Visible || state.TargetID == nil || *state.TargetID != "7" {
		t.Errorf("Unexpected state: %+v", state)
	}
	if state.Position != (types.Position{X: 12, Y: 34}) {
		t.Errorf("Unexpected position: %+v", state.Position)
	}
}

func TestOpen_SecondOpenReplacesFirst(t *testing.T) {
	var changes []types.MenuState
	c := New(nil, WithLogger(logging.Discard()), WithOnChange(func(s types.MenuState) {
		changes = append(changes, s)
	}))

	c.Open(&MouseEvent{X: 1, Y: 1}, "1", "")
	c.Open(&MouseEvent{X: 2, Y: 2}, "2", "")

	state := c.State()
	if *state.TargetID != "2" || state.Position.X != 2 {
		t.Errorf("Expected only the second menu visible, got %+v", state)
	}
	if len(changes) != 3 || changes[1].Visible {
		t.Errorf("Expected the first menu hidden before the second shows, got %+v", changes)
	}
}

func TestOpen_DeniedIsNoop(t *testing.T) {
	c := New(func(types.ID, string) bool { return false }, WithLogger(logging.Discard()))
	ev := &MouseEvent{X: 5, Y: 5}

	if c.Open(ev, "1", "総務部") {
		t.Error("Denied open returned true")
	}
	if c.Visible() {
		t.Error("Denied open made the menu visible")
	}
	if ev.Prevented {
		t.Error("Denied open suppressed the platform menu")
	}
}

func TestOutsideClick(t *testing.T) {
	c := New(nil, WithLogger(logging.Discard()))
	c.Open(&MouseEvent{}, "1", "")

	c.OutsideClick(true)
	if !c.Visible() {
		t.Error("Click inside the menu hid it")
	}

	c.OutsideClick(false)
	if c.Visible() {
		t.Error("Click outside did not hide the menu")
	}
	if c.State().TargetID != nil {
		t.Error("Hidden menu kept its target")
	}

	// no-op while hidden
	c.OutsideClick(false)
}

func TestSelect_HidesBeforeRunning(t *testing.T) {
	c := New(nil, WithLogger(logging.Discard()))
	c.Open(&MouseEvent{}, "42", "")

	var ran types.ID
	visibleDuringRun := true
	ok := c.Select(Action{Key: "edit", Run: func(id types.ID) {
		ran = id
		visibleDuringRun = c.Visible()
	}})

	if !ok || ran != "42" {
		t.Errorf("Action not run on target: ok=%v id=%q", ok, ran)
	}
	if visibleDuringRun {
		t.Error("Menu still visible while the action ran")
	}

	if c.Select(Action{Run: func(types.ID) { t.Error("ran while hidden") }}) {
		t.Error("Select on hidden menu returned true")
	}
}

func TestAdminAccess(t *testing.T) {
	tests := []struct {
		name  string
		user  types.User
		scope string
		want  bool
	}{
		{
			name:  "system admin",
			user:  types.User{Departments: []types.Department{{Name: "管理者", Admin: true}}},
			scope: "製造部",
			want:  true,
		},
		{
			name:  "scope admin",
			user:  types.User{Departments: []types.Department{{Name: "製造部", Admin: true}}},
			scope: "製造部",
			want:  true,
		},
		{
			name:  "member only",
			user:  types.User{Departments: []types.Department{{Name: "製造部"}, {Name: "管理者"}}},
			scope: "製造部",
			want:  false,
		},
		{
			name:  "admin of other department",
			user:  types.User{Departments: []types.Department{{Name: "総務部", Admin: true}}},
			scope: "製造部",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdminAccess(tt.user, "")("1", tt.scope); got != tt.want {
				t.Errorf("AdminAccess = %v, want %v", got, tt.want)
			}
		})
	}

	custom := types.User{Departments: []types.Department{{Name: "root", Admin: true}}}
	if !AdminAccess(custom, "root")("1", "any") {
		t.Error("Configured system department not honoured")
	}
}

type staticUser struct {
	user types.User
	ok   bool
}

func (s staticUser) CurrentUser() (types.User, bool) { return s.user, s.ok }

func TestAdminAccessFrom_LoggedOut(t *testing.T) {
	if AdminAccessFrom(staticUser{}, "")("1", "製造部") {
		t.Error("Logged-out user allowed")
	}
	admin := staticUser{user: types.User{Departments: []types.Department{{Name: "管理者", Admin: true}}}, ok: true}
	if !AdminAccessFrom(admin, "")("1", "製造部") {
		t.Error("System admin denied")
	}
}
