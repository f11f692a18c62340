package trust

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const loopbackAddr = "127.0.0.1"

// hostsFile appends loopback mappings to the platform hosts file. Appends
// are check-then-append: an existing mapping, whatever its address, is
// left alone, and elevation is only requested when a write is actually
// needed.
type hostsFile struct {
	goos string
	run  runner
	path string
}

func newHostsFile(goos string, run runner) *hostsFile {
	return &hostsFile{goos: goos, run: run, path: hostsPath(goos)}
}

func hostsPath(goos string) string {
	if goos == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// addIfMissing appends "127.0.0.1 <domain>" when no entry for domain
// exists. Reports whether an entry was written.
func (h *hostsFile) addIfMissing(domain string) (bool, error) {
	data, err := os.ReadFile(h.path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading hosts file: %w", err)
	}
	if containsHostsEntry(string(data), domain) {
		return false, nil
	}

	entry := fmt.Sprintf("%s %s", loopbackAddr, domain)

	// Try a direct append first; fall back to an elevated write when the
	// file is not writable by this user.
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err == nil {
		defer f.Close()
		if _, err := fmt.Fprintf(f, "\n%s\n", entry); err != nil {
			return false, fmt.Errorf("appending hosts entry: %w", err)
		}
		return true, nil
	}
	if !os.IsPermission(err) {
		return false, fmt.Errorf("opening hosts file: %w", err)
	}
	if err := h.elevatedAppend(entry); err != nil {
		return false, err
	}
	return true, nil
}

// elevatedAppend writes the entry through sudo when the direct append was
// denied. It runs from a background task, so sudo gets "-n": a password
// prompt here would interleave with foreground output. A cached sudo
// session from the trust-store install covers the usual case.
func (h *hostsFile) elevatedAppend(entry string) error {
	if h.goos == "windows" {
		// There is no sudo to fall back to; the user has to rerun
		// elevated.
		return fmt.Errorf("hosts file %s is not writable; run from an elevated prompt", h.path)
	}
	script := fmt.Sprintf("printf '\\n%s\\n' >> %s", entry, h.path)
	if out, err := h.run("sudo", "-n", "sh", "-c", script); err != nil {
		return fmt.Errorf("elevated hosts append (rerun with write access to %s): %v: %s", h.path, err, out)
	}
	return nil
}

// containsHostsEntry reports whether any non-comment line already maps the
// domain.
func containsHostsEntry(content, domain string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		for _, f := range fields[1:] {
			if strings.EqualFold(f, domain) {
				return true
			}
		}
	}
	return false
}
