package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTerminalConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			confirm := TerminalConfirm(strings.NewReader(tt.input), &out)
			if got := confirm("Do the thing?"); got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Do the thing?") {
				t.Errorf("prompt not written: %q", out.String())
			}
		})
	}
}

func TestAssumeYes(t *testing.T) {
	g := AssumeYes()
	if !g.Confirm("anything") {
		t.Error("AssumeYes gate declined")
	}
}

func TestGateUsesInjectedConfirm(t *testing.T) {
	var asked string
	g := NewGate(func(prompt string) bool {
		asked = prompt
		return true
	})
	if !g.Confirm("install CA?") {
		t.Error("injected confirm not honored")
	}
	if asked != "install CA?" {
		t.Errorf("prompt = %q", asked)
	}
}
