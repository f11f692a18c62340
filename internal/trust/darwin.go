package trust

import (
	"fmt"
	"strings"
)

const systemKeychain = "/Library/Keychains/System.keychain"

// darwinStore drives the macOS System keychain through the security
// command line tool.
type darwinStore struct {
	run      runner
	keychain string
}

func newDarwinStore(run runner) *darwinStore {
	return &darwinStore{run: run, keychain: systemKeychain}
}

func (s *darwinStore) Description() string { return "macOS System keychain" }

func (s *darwinStore) AddToSystemStore(certPath string) error {
	// add-trusted-cert is idempotent: re-adding an already trusted
	// certificate succeeds.
	out, err := s.run("sudo", "-p", "Password to modify the System keychain: ",
		"security", "add-trusted-cert", "-d", "-r", "trustRoot",
		"-k", s.keychain, certPath)
	if err != nil {
		return fmt.Errorf("security add-trusted-cert: %v: %s", err, out)
	}
	return nil
}

func (s *darwinStore) RemoveFromSystemStore(commonName, certPath string) error {
	if !s.IsInstalled(commonName) {
		return nil
	}
	out, err := s.run("sudo", "-p", "Password to modify the System keychain: ",
		"security", "delete-certificate", "-c", commonName, s.keychain)
	if err != nil {
		return fmt.Errorf("security delete-certificate: %v: %s", err, out)
	}
	return nil
}

func (s *darwinStore) IsInstalled(commonName string) bool {
	out, err := s.run("security", "find-certificate", "-c", commonName, s.keychain)
	return err == nil && strings.Contains(string(out), commonName)
}
