package openssl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"
)

// fakeExec returns an execCommand replacement that re-runs the test binary
// and dispatches to TestHelperProcess.
func fakeExec(mode string) func(name string, args ...string) *exec.Cmd {
	return func(name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", mode}, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	switch args[0] {
	case "enddate":
		fmt.Println("notAfter=May 30 12:00:00 2028 GMT")
		os.Exit(0)
	case "garbage":
		fmt.Println("something unexpected")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "unable to load certificate")
		os.Exit(1)
	}
	os.Exit(2)
}

func newFakeTool(mode string) *Tool {
	t := New()
	t.execCommand = fakeExec(mode)
	return t
}

func TestRunCapturesStdout(t *testing.T) {
	tool := newFakeTool("enddate")
	out, err := tool.Run("x509", "-noout", "-enddate")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "notAfter=May 30 12:00:00 2028 GMT\n" {
		t.Errorf("unexpected stdout: %q", out)
	}
}

func TestRunMapsFailureToToolError(t *testing.T) {
	tool := newFakeTool("fail")
	_, err := tool.Run("x509", "-in", "missing.crt")

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected *ToolError, got %T (%v)", err, err)
	}
	if toolErr.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", toolErr.ExitCode)
	}
	if toolErr.Stderr == "" {
		t.Error("stderr not captured")
	}
}

func TestCertExpiryDays(t *testing.T) {
	tool := newFakeTool("enddate")
	tool.now = func() time.Time {
		return time.Date(2028, time.May, 20, 12, 0, 0, 0, time.UTC)
	}

	if days := tool.CertExpiryDays("some.crt"); days != 10 {
		t.Errorf("CertExpiryDays = %d, want 10", days)
	}
}

func TestCertExpiryDaysSentinel(t *testing.T) {
	t.Run("invocation failure", func(t *testing.T) {
		tool := newFakeTool("fail")
		if days := tool.CertExpiryDays("missing.crt"); days != -1 {
			t.Errorf("CertExpiryDays = %d, want -1", days)
		}
	})

	t.Run("unparseable output", func(t *testing.T) {
		tool := newFakeTool("garbage")
		if days := tool.CertExpiryDays("some.crt"); days != -1 {
			t.Errorf("CertExpiryDays = %d, want -1", days)
		}
	})

	t.Run("already expired", func(t *testing.T) {
		tool := newFakeTool("enddate")
		tool.now = func() time.Time {
			return time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		if days := tool.CertExpiryDays("some.crt"); days != -1 {
			t.Errorf("CertExpiryDays = %d, want -1", days)
		}
	})
}

func TestDaysUntilPaddedDay(t *testing.T) {
	tool := New()
	tool.now = func() time.Time {
		return time.Date(2028, time.May, 1, 0, 0, 0, 0, time.UTC)
	}
	// Single-digit days are double-space padded by openssl.
	if days := tool.daysUntil("notAfter=May  3 00:00:00 2028 GMT\n"); days != 2 {
		t.Errorf("daysUntil = %d, want 2", days)
	}
}
