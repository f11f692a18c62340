// Package openssl wraps the openssl command line tool. All key generation,
// CSR construction, signing and revocation is delegated to openssl as a
// subprocess; this package only builds argument vectors, captures output,
// and maps failures to typed errors.
package openssl

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ToolError reports a non-zero exit from the external tool. Stderr carries
// the raw diagnostic text; callers must not parse partial stdout after a
// failure.
type ToolError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("openssl %s failed (exit %d)", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// MissingDependencyError reports that a required external tool is absent.
type MissingDependencyError struct {
	Tool string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// Tool invokes the openssl binary. The zero value is not usable; construct
// with New.
type Tool struct {
	binary string

	// execCommand is swapped in tests so no real subprocess runs.
	execCommand func(name string, args ...string) *exec.Cmd

	now func() time.Time
}

// New returns a Tool using the openssl binary found in PATH.
func New() *Tool {
	return &Tool{
		binary:      "openssl",
		execCommand: exec.Command,
		now:         time.Now,
	}
}

// Check verifies the openssl binary is available. Returns
// *MissingDependencyError when it is not.
func (t *Tool) Check() error {
	if _, err := exec.LookPath(t.binary); err != nil {
		return &MissingDependencyError{Tool: t.binary}
	}
	return nil
}

// Run executes openssl with the given arguments and returns captured
// stdout. The call blocks until the subprocess exits; no timeout is
// applied, so a hung tool hangs the caller.
func (t *Tool) Run(args ...string) ([]byte, error) {
	cmd := t.execCommand(t.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.WithField("args", strings.Join(args, " ")).Debug("running openssl")

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ToolError{
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
		}
	}
	return stdout.Bytes(), nil
}

// opensslDateLayout matches the notAfter text openssl prints, e.g.
// "May 30 12:00:00 2028 GMT".
const opensslDateLayout = "Jan 2 15:04:05 2006 MST"

// CertExpiryDays returns the number of days until the certificate at path
// expires. This is an advisory query: any invocation or parse failure is
// reported as -1, never as an error.
func (t *Tool) CertExpiryDays(certPath string) int {
	out, err := t.Run("x509", "-in", certPath, "-noout", "-enddate")
	if err != nil {
		logrus.WithError(err).WithField("cert", certPath).Debug("expiry query failed")
		return -1
	}
	return t.daysUntil(string(out))
}

// daysUntil parses "notAfter=<date>" output and converts it to whole days
// remaining from now.
func (t *Tool) daysUntil(enddate string) int {
	line := strings.TrimSpace(enddate)
	const prefix = "notAfter="
	if !strings.HasPrefix(line, prefix) {
		return -1
	}
	raw := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	// openssl pads single-digit days with a double space.
	raw = strings.Join(strings.Fields(raw), " ")

	notAfter, err := time.Parse(opensslDateLayout, raw)
	if err != nil {
		logrus.WithError(err).WithField("enddate", raw).Debug("unparseable notAfter")
		return -1
	}

	remaining := notAfter.Sub(t.now())
	if remaining < 0 {
		return -1
	}
	return int(remaining.Hours() / 24)
}
