package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgress(4)
	bar.SetWriter(&buf)

	bar.Step(1, "denikson-BepInExPack_Valheim")
	bar.Step(2, "ValheimModding-Jotunn")
	bar.Step(9, "overflow")
	bar.Finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want one per step:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "1/4 denikson-BepInExPack_Valheim") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[2], "4/4 overflow") {
		t.Errorf("line 2 = %q, want clamped to total", lines[2])
	}
	if strings.Contains(buf.String(), "\r") {
		t.Error("non-TTY output should not use carriage returns")
	}
	if !strings.HasPrefix(lines[2], "[=============================>]") {
		t.Errorf("full bar = %q", lines[2])
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgress(0)
	bar.SetWriter(&buf)
	bar.Step(0, "empty")
	if !strings.Contains(buf.String(), "0/0 empty") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSpinner_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Fetching valheim index")
	s.SetWriter(&buf)

	s.Start()
	s.Start()
	s.StopWithMessage("done")
	s.Stop()

	want := "Fetching valheim index...\ndone\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
