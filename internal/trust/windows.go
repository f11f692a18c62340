package trust

import (
	"fmt"
	"strings"
)

// windowsStore drives the Windows Root certificate store through
// certutil.exe, which ships with the OS.
type windowsStore struct {
	run runner
}

func newWindowsStore(run runner) *windowsStore {
	return &windowsStore{run: run}
}

func (s *windowsStore) Description() string { return "Windows Root certificate store" }

func (s *windowsStore) AddToSystemStore(certPath string) error {
	// -f replaces an existing entry, so repeat installs are harmless.
	out, err := s.run("certutil", "-addstore", "-f", "Root", certPath)
	if err != nil {
		return fmt.Errorf("certutil -addstore: %v: %s", err, out)
	}
	return nil
}

func (s *windowsStore) RemoveFromSystemStore(commonName, certPath string) error {
	out, err := s.run("certutil", "-delstore", "Root", commonName)
	if err != nil {
		// certutil fails when the entry is absent; treat that as removed.
		if strings.Contains(string(out), "not found") {
			return nil
		}
		return fmt.Errorf("certutil -delstore: %v: %s", err, out)
	}
	return nil
}

func (s *windowsStore) IsInstalled(commonName string) bool {
	out, err := s.run("certutil", "-verifystore", "Root", commonName)
	return err == nil && strings.Contains(string(out), commonName)
}
