// Package trust installs the locert root CA into operating system and
// browser trust stores, and maintains loopback hosts-file entries for
// issued domains. One Platform variant exists per supported OS; the
// variant is selected once at startup from the detected platform tag.
package trust

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/sirupsen/logrus"

	"locert/internal/audit"
	"locert/internal/ui"
)

// ErrDeclined reports that the user declined a privileged trust-store
// mutation at the confirmation gate.
var ErrDeclined = errors.New("declined by user")

// UnsupportedPlatformError reports an OS with no trust-store variant.
// There is no fallback; callers must treat this as fatal.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("platform %q is not supported", e.GOOS)
}

// MissingDependencyError reports an absent external tool.
type MissingDependencyError struct {
	Tool string
	Hint string
}

func (e *MissingDependencyError) Error() string {
	msg := fmt.Sprintf("required tool %q not found", e.Tool)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// StoreError reports a failed trust-store mutation. Store names the store
// that failed; Err carries the underlying cause.
type StoreError struct {
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s trust store: %v", e.Store, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// runner executes an external command and returns its combined output.
// Swapped in tests so no real system command runs.
type runner func(name string, args ...string) ([]byte, error)

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// Platform is the capability set one OS variant provides for the system
// trust store.
type Platform interface {
	// Description names the system store for log and prompt text.
	Description() string
	// AddToSystemStore adds the CA certificate to the system trust store.
	// Re-adding an already trusted certificate is harmless.
	AddToSystemStore(certPath string) error
	// RemoveFromSystemStore removes the CA certificate, tolerating an
	// entry that is already gone.
	RemoveFromSystemStore(commonName, certPath string) error
	// IsInstalled probes whether the CA is present in the system store.
	IsInstalled(commonName string) bool
}

// Supported reports whether a trust-store variant exists for the given
// GOOS tag.
func Supported(goos string) bool {
	_, err := ForPlatform(goos)
	return err == nil
}

// ForPlatform returns the trust-store variant for the given GOOS tag.
func ForPlatform(goos string) (Platform, error) {
	switch goos {
	case "linux":
		return newLinuxStore(runCommand), nil
	case "darwin":
		return newDarwinStore(runCommand), nil
	case "windows":
		return newWindowsStore(runCommand), nil
	default:
		return nil, &UnsupportedPlatformError{GOOS: goos}
	}
}

// Options configures an Installer.
type Options struct {
	// CommonName of the root certificate; the handle used to locate and
	// remove trust-store entries.
	CommonName string
	// SkipBrowserStores disables NSS database handling entirely.
	SkipBrowserStores bool
	// RequireBrowserStores promotes browser-store failures to errors.
	RequireBrowserStores bool
	// SkipCertutilInstall stops the installer from fetching certutil when
	// it is missing.
	SkipCertutilInstall bool
	// Gate approves privileged actions. Nil means prompt on the terminal.
	Gate *ui.Gate
}

// Installer drives the platform system store, the NSS browser stores and
// the hosts file for one configured CA.
type Installer struct {
	platform Platform
	nss      *nssStores
	hosts    *hostsFile
	gate     *ui.Gate
	opts     Options
}

// NewInstaller returns an Installer for the current platform.
func NewInstaller(opts Options) (*Installer, error) {
	platform, err := ForPlatform(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	return newInstaller(platform, opts), nil
}

func newInstaller(platform Platform, opts Options) *Installer {
	gate := opts.Gate
	if gate == nil {
		gate = ui.NewGate(nil)
	}
	return &Installer{
		platform: platform,
		nss:      newNSSStores(runtime.GOOS, runCommand, opts.SkipCertutilInstall, gate),
		hosts:    newHostsFile(runtime.GOOS, runCommand),
		gate:     gate,
		opts:     opts,
	}
}

// Install adds the CA certificate to the system trust store and, unless
// disabled, the browser trust stores. The confirmation gate is consulted
// once before the privileged system-store mutation.
func (in *Installer) Install(certPath string) error {
	prompt := fmt.Sprintf("Installing the root certificate into the %s requires administrator privileges. Proceed?",
		in.platform.Description())
	if !in.gate.Confirm(prompt) {
		return &StoreError{Store: in.platform.Description(), Err: ErrDeclined}
	}

	if err := in.platform.AddToSystemStore(certPath); err != nil {
		audit.Log(audit.EventTrustStoreAdd, "error", "System trust store install failed", map[string]interface{}{
			"store": in.platform.Description(),
		})
		return &StoreError{Store: in.platform.Description(), Err: err}
	}
	audit.Log(audit.EventTrustStoreAdd, "info", "CA added to system trust store", map[string]interface{}{
		"store": in.platform.Description(),
	})

	if in.opts.SkipBrowserStores {
		return nil
	}
	if err := in.nss.add(certPath, in.opts.CommonName); err != nil {
		if in.opts.RequireBrowserStores {
			return &StoreError{Store: "browser (NSS)", Err: err}
		}
		logrus.WithError(err).Warn("Browser trust stores were not updated; browsers may warn about issued certificates")
	}
	return nil
}

// IsInstalled probes the system trust store for the CA.
func (in *Installer) IsInstalled() bool {
	return in.platform.IsInstalled(in.opts.CommonName)
}

// Uninstall removes the CA from every store it may have been added to.
// Stores that no longer hold the entry are skipped without failing the
// overall operation.
func (in *Installer) Uninstall(certPath string) error {
	prompt := fmt.Sprintf("Removing the root certificate from the %s requires administrator privileges. Proceed?",
		in.platform.Description())
	if !in.gate.Confirm(prompt) {
		return &StoreError{Store: in.platform.Description(), Err: ErrDeclined}
	}

	if err := in.platform.RemoveFromSystemStore(in.opts.CommonName, certPath); err != nil {
		return &StoreError{Store: in.platform.Description(), Err: err}
	}
	audit.Log(audit.EventTrustStoreRemove, "info", "CA removed from system trust store", map[string]interface{}{
		"store": in.platform.Description(),
	})

	if !in.opts.SkipBrowserStores {
		if err := in.nss.remove(in.opts.CommonName); err != nil {
			logrus.WithError(err).Warn("Failed to remove CA from browser trust stores")
		}
	}
	return nil
}

// AddHostsEntry appends a loopback mapping for domain to the hosts file
// when one is not already present. Repeated calls are no-ops.
func (in *Installer) AddHostsEntry(domain string) error {
	added, err := in.hosts.addIfMissing(domain)
	if err != nil {
		return err
	}
	if added {
		audit.Log(audit.EventHostsFileUpdate, "info", "Hosts file entry added", map[string]interface{}{
			"domain": domain,
		})
	}
	return nil
}
