package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestChan_DropsOldestWhenFull(t *testing.T) {
	n := NewChan(2)
	n.Success("one")
	n.Error("two")
	n.Success("three")

	first := <-n.C()
	second := <-n.C()

	if first.Text != "two" || first.Level != LevelError {
		t.Errorf("Expected oldest message dropped, got %+v", first)
	}
	if second.Text != "three" {
		t.Errorf("Expected newest message kept, got %+v", second)
	}
}

func TestMulti_FansOut(t *testing.T) {
	var buf bytes.Buffer
	rec := &Recorder{}
	m := Multi{rec, Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}}

	m.Success("saved")
	m.Error("failed")

	msgs := rec.Messages()
	if len(msgs) != 2 || msgs[0].Level != LevelSuccess || msgs[1].Level != LevelError {
		t.Errorf("Unexpected recorded messages: %+v", msgs)
	}
	if !strings.Contains(buf.String(), "saved") || !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("Log sink missing messages: %s", buf.String())
	}
}
