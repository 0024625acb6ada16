package keybinds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMatch_ContextThenGlobal(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		context Context
		key     string
		want    Action
		ok      bool
	}{
		{ContextTable, "j", ActionNavigateDown, true},
		{ContextDrag, "j", ActionDragDown, true},
		{ContextForm, "ctrl+c", ActionQuitForce, true},
		{ContextConfirm, "y", ActionConfirm, true},
		{ContextTable, "z", "", false},
	}

	for _, tt := range tests {
		got, ok := r.Match(tt.context, tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Match(%s, %q) = %q, %v; want %q, %v", tt.context, tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatchSequence(t *testing.T) {
	r := NewDefaultRegistry()

	if _, ok, partial := r.MatchSequence(ContextTable, "g"); ok || !partial {
		t.Fatal("Expected g to start a sequence")
	}
	if action, ok, _ := r.MatchSequence(ContextTable, "g"); !ok || action != ActionGoToTop {
		t.Errorf("gg = %q, %v", action, ok)
	}

	// a broken sequence falls back to the second key
	r.MatchSequence(ContextTable, "g")
	if action, ok, _ := r.MatchSequence(ContextTable, "j"); !ok || action != ActionNavigateDown {
		t.Errorf("g j = %q, %v", action, ok)
	}

	if action, ok, partial := r.MatchSequence(ContextTable, "G"); !ok || partial || action != ActionGoToBottom {
		t.Errorf("G = %q, %v, %v", action, ok, partial)
	}
}

func TestKeyString(t *testing.T) {
	r := NewDefaultRegistry()
	if got := r.KeyString(ContextTable, ActionMoveRowUp); got != "K" {
		t.Errorf("KeyString = %q", got)
	}
	if got := r.KeyString(ContextTable, ActionSubmit); got != "unbound" {
		t.Errorf("KeyString = %q", got)
	}
}

func TestLoad_AppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `bindings:
  table:
    x: delete
    d: ""
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if action, _ := r.Match(ContextTable, "x"); action != ActionDelete {
		t.Errorf("x = %q", action)
	}
	if _, ok := r.Match(ContextTable, "d"); ok {
		t.Error("d still bound")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	r, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if action, _ := r.Match(ContextTable, "n"); action != ActionCreate {
		t.Errorf("n = %q", action)
	}
}

func TestApplyConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"unknown context", Config{Bindings: map[Context]map[string]Action{"nope": {"x": ActionQuit}}}, "unknown context"},
		{"unknown action", Config{Bindings: map[Context]map[string]Action{ContextTable: {"x": "explode"}}}, "unknown action"},
		{"bare modifier", Config{Bindings: map[Context]map[string]Action{ContextTable: {"ctrl+": ActionQuit}}}, "modifier without key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ApplyConfig(NewRegistry(), &tt.config)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ApplyConfig error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if result := Validate(NewDefaultRegistry()); result.HasErrors() {
		t.Errorf("Defaults invalid:\n%s", result)
	}

	r := NewDefaultRegistry()
	r.Register(ContextTable, "ctrl+c", ActionQuit)
	r.Unregister(ContextConfirm, "esc")
	r.Unregister(ContextConfirm, "n")

	result := Validate(r)
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got:\n%s", result)
	}
	if !strings.Contains(result.String(), "reserved key rebound") || !strings.Contains(result.String(), "no key bound to cancel") {
		t.Errorf("Unexpected report:\n%s", result)
	}
}
