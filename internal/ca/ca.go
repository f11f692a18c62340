// Package ca owns the root certificate authority lifecycle: key and
// certificate generation through openssl, custody of the private key
// file, scoped credential access for signing operations, and removal.
//
// The CA private key can sign certificates for ANY domain, so its file
// permissions are kept at owner-read-only and only widened for the
// duration of a signing subprocess.
package ca

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"

	"github.com/sirupsen/logrus"

	"locert/internal/audit"
	"locert/internal/store"
	"locert/internal/trust"
)

const (
	// keyModeLocked keeps the CA key owner-read-only between operations.
	keyModeLocked os.FileMode = 0400
	// keyModeOpen is the widened mode used while a signing subprocess
	// needs to read the key.
	keyModeOpen os.FileMode = 0600
)

// cryptoTool is the slice of the openssl wrapper this package needs.
type cryptoTool interface {
	Run(args ...string) ([]byte, error)
	CertExpiryDays(certPath string) int
}

// trustInstaller is the slice of the trust-store installer this package
// needs.
type trustInstaller interface {
	Install(certPath string) error
	Uninstall(certPath string) error
	IsInstalled() bool
}

// Manager owns the root CA for one config root.
type Manager struct {
	store      *store.Store
	tool       cryptoTool
	installer  trustInstaller
	commonName string
	// validityDays applies to the root certificate, certDays to issued
	// leaf certificates (recorded in the CA config for openssl ca).
	validityDays int
	certDays     int

	// sudoCommand is swapped in tests; it covers the ownership-repair
	// path that needs elevation.
	sudoCommand func(name string, args ...string) ([]byte, error)
}

// New returns a Manager for the given store.
func New(s *store.Store, tool cryptoTool, installer trustInstaller, commonName string, validityDays, certDays int) *Manager {
	return &Manager{
		store:        s,
		tool:         tool,
		installer:    installer,
		commonName:   commonName,
		validityDays: validityDays,
		certDays:     certDays,
		sudoCommand: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

// Exists reports whether the CA private key is present. Callers use this
// as the idempotency guard before Install.
func (m *Manager) Exists() bool {
	return m.store.HasRootCA()
}

// Installed reports whether the CA certificate is present in the system
// trust store. A key that exists while this returns false indicates a
// half-finished earlier install; RepairTrust completes it.
func (m *Manager) Installed() bool {
	return m.installer.IsInstalled()
}

// Install generates the root key and self-signed certificate, initializes
// the openssl CA database, and installs the certificate into the trust
// stores. Any failure is fatal and surfaced to the caller; partially
// created CA material is intentionally left on disk for diagnosis and
// for the self-healing path on the next run.
func (m *Manager) Install() error {
	root := m.store.Root()
	if err := os.MkdirAll(root, 0700); err != nil {
		return fmt.Errorf("creating config root: %w", err)
	}

	conf, err := renderCAConf(root, m.commonName, m.certDays)
	if err != nil {
		return fmt.Errorf("rendering CA config: %w", err)
	}
	if err := os.WriteFile(m.store.CAConfPath(), conf, 0600); err != nil {
		return fmt.Errorf("writing CA config: %w", err)
	}
	if err := m.initDatabase(); err != nil {
		return err
	}

	keyPath := m.store.RootCAKeyPath()
	if _, err := m.tool.Run("genrsa", "-out", keyPath, "2048"); err != nil {
		return err
	}
	if err := os.Chmod(keyPath, keyModeLocked); err != nil {
		return fmt.Errorf("restricting CA key permissions: %w", err)
	}

	certPath := m.store.RootCACertPath()
	_, err = m.tool.Run("req", "-new", "-x509",
		"-config", m.store.CAConfPath(),
		"-key", keyPath,
		"-out", certPath,
		"-days", strconv.Itoa(m.validityDays))
	if err != nil {
		return err
	}

	audit.Log(audit.EventCACreated, "info", "Root CA generated", map[string]interface{}{
		"cert": certPath,
	})
	logrus.WithField("path", root).Info("Root CA generated")

	if err := m.installer.Install(certPath); err != nil {
		return err
	}
	audit.Log(audit.EventCAInstalled, "info", "Root CA installed in trust stores", nil)
	return nil
}

// initDatabase creates the index, serial and new-certs directory that the
// openssl ca sub-command requires.
func (m *Manager) initDatabase() error {
	if err := os.MkdirAll(m.store.CANewCertsDir(), 0700); err != nil {
		return fmt.Errorf("creating CA certs dir: %w", err)
	}
	if _, err := os.Stat(m.store.CAIndexPath()); os.IsNotExist(err) {
		if err := os.WriteFile(m.store.CAIndexPath(), nil, 0600); err != nil {
			return fmt.Errorf("creating CA index: %w", err)
		}
	}
	if _, err := os.Stat(m.store.CASerialPath()); os.IsNotExist(err) {
		if err := os.WriteFile(m.store.CASerialPath(), []byte("1000\n"), 0600); err != nil {
			return fmt.Errorf("creating CA serial: %w", err)
		}
	}
	return nil
}

// RepairTrust re-runs the trust-store installation for an already
// generated CA. Used when the key exists but the trust probe fails,
// which is the signature of an earlier half-finished install.
func (m *Manager) RepairTrust() error {
	if !m.Exists() {
		return fmt.Errorf("no CA to repair")
	}
	return m.installer.Install(m.store.RootCACertPath())
}

// WithCredentials resolves the CA key and certificate paths and hands
// them to fn for the duration of one signing operation. The key is
// widened from owner-read-only for that window and restored on every
// exit path.
func (m *Manager) WithCredentials(fn func(keyPath, certPath string) error) (err error) {
	keyPath := m.store.RootCAKeyPath()
	certPath := m.store.RootCACertPath()

	if _, statErr := os.Stat(keyPath); statErr != nil {
		return fmt.Errorf("CA key unavailable: %w", statErr)
	}

	if err := os.Chmod(keyPath, keyModeOpen); err != nil {
		audit.LogKeyAccess("widen", false)
		return fmt.Errorf("widening CA key permissions: %w", err)
	}
	audit.LogKeyAccess("widen", true)

	defer func() {
		if chmodErr := os.Chmod(keyPath, keyModeLocked); chmodErr != nil {
			audit.LogKeyAccess("narrow", false)
			if err == nil {
				err = fmt.Errorf("restoring CA key permissions: %w", chmodErr)
			} else {
				logrus.WithError(chmodErr).Error("Failed to restore CA key permissions")
			}
			return
		}
		audit.LogKeyAccess("narrow", true)
	}()

	return fn(keyPath, certPath)
}

// EnsureReadable repairs a CA key file that exists but cannot be read by
// the current user, a leftover of earlier installs that wrote the key as
// root. Ownership is taken back with an elevated chown, then permissions
// are narrowed to owner-read-only. A key that is already readable but too
// permissive is silently re-narrowed.
func (m *Manager) EnsureReadable() error {
	keyPath := m.store.RootCAKeyPath()
	info, err := os.Stat(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("inspecting CA key: %w", err)
	}

	if f, err := os.Open(keyPath); err == nil {
		f.Close()
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			// Readable but exposed to group/other: narrow it.
			if err := os.Chmod(keyPath, keyModeLocked); err != nil {
				return fmt.Errorf("narrowing CA key permissions: %w", err)
			}
			audit.Log(audit.EventCAKeyRepaired, "warning", "CA key permissions narrowed", map[string]interface{}{
				"previous_mode": mode.String(),
			})
		}
		return nil
	}

	u, err := user.Current()
	if err != nil {
		return fmt.Errorf("resolving current user: %w", err)
	}
	logrus.Warn("CA key is not readable by the current user; repairing ownership")
	if out, err := m.sudoCommand("sudo", "chown", u.Username, keyPath); err != nil {
		return fmt.Errorf("repairing CA key ownership: %v: %s", err, out)
	}
	if err := os.Chmod(keyPath, keyModeLocked); err != nil {
		return fmt.Errorf("narrowing CA key permissions: %w", err)
	}
	audit.Log(audit.EventCAKeyRepaired, "warning", "CA key ownership repaired", map[string]interface{}{
		"owner": u.Username,
	})
	return nil
}

// ExpiryDays returns the days until the root certificate expires, or -1
// before installation or on any query failure.
func (m *Manager) ExpiryDays() int {
	if !m.Exists() {
		return -1
	}
	return m.tool.CertExpiryDays(m.store.RootCACertPath())
}

// Uninstall removes the CA from every trust store, then deletes the CA
// material, its signing database, and the whole per-domain certificate
// cache. Trust stores that no longer hold the entry do not fail the
// uninstall.
func (m *Manager) Uninstall() error {
	certPath := m.store.RootCACertPath()
	if err := m.installer.Uninstall(certPath); err != nil {
		if errors.Is(err, trust.ErrDeclined) {
			// The user said no; leave everything in place.
			return err
		}
		logrus.WithError(err).Warn("Trust store cleanup incomplete")
	}

	keyPath := m.store.RootCAKeyPath()
	// The key is owner-read-only; make it deletable first.
	if err := os.Chmod(keyPath, keyModeOpen); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Debug("Could not relax CA key before deletion")
	}

	paths := []string{
		keyPath,
		certPath,
		m.store.CAConfPath(),
		m.store.CAIndexPath(),
		m.store.CAIndexPath() + ".attr",
		m.store.CAIndexPath() + ".old",
		m.store.CAIndexPath() + ".attr.old",
		m.store.CASerialPath(),
		m.store.CASerialPath() + ".old",
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	for _, dir := range []string{m.store.CANewCertsDir(), m.store.DomainsRoot()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}

	audit.Log(audit.EventCAUninstalled, "info", "Root CA and certificate cache removed", nil)
	return nil
}
