package trust

import (
	"fmt"
	"os"
	"path/filepath"
)

const linuxCertFileName = "locert-root-ca.crt"

// linuxStore drives the shared system CA directory consumed by
// update-ca-certificates. Installing means copying the certificate into
// the anchors directory and regenerating the bundle.
type linuxStore struct {
	run     runner
	certDir string
}

func newLinuxStore(run runner) *linuxStore {
	return &linuxStore{
		run:     run,
		certDir: "/usr/local/share/ca-certificates",
	}
}

func (s *linuxStore) Description() string { return "system CA bundle" }

func (s *linuxStore) installedPath() string {
	return filepath.Join(s.certDir, linuxCertFileName)
}

func (s *linuxStore) AddToSystemStore(certPath string) error {
	if out, err := s.run("sudo", "mkdir", "-p", s.certDir); err != nil {
		return fmt.Errorf("creating %s: %v: %s", s.certDir, err, out)
	}
	if out, err := s.run("sudo", "cp", certPath, s.installedPath()); err != nil {
		return fmt.Errorf("copying certificate: %v: %s", err, out)
	}
	if out, err := s.run("sudo", "update-ca-certificates"); err != nil {
		return fmt.Errorf("update-ca-certificates: %v: %s", err, out)
	}
	return nil
}

func (s *linuxStore) RemoveFromSystemStore(commonName, certPath string) error {
	if _, err := os.Stat(s.installedPath()); os.IsNotExist(err) {
		// Already removed.
		return nil
	}
	if out, err := s.run("sudo", "rm", "-f", s.installedPath()); err != nil {
		return fmt.Errorf("removing certificate: %v: %s", err, out)
	}
	if out, err := s.run("sudo", "update-ca-certificates"); err != nil {
		return fmt.Errorf("update-ca-certificates: %v: %s", err, out)
	}
	return nil
}

func (s *linuxStore) IsInstalled(commonName string) bool {
	_, err := os.Stat(s.installedPath())
	return err == nil
}
