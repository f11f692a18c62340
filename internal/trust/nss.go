package trust

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"locert/internal/ui"
)

// nssStores manages the NSS certificate databases kept by Firefox and
// Chromium independently of the system trust store. NSS databases are
// manipulated with the certutil tool, which is optional: when it is
// missing it can be installed on request, otherwise browser stores are
// skipped with a warning.
type nssStores struct {
	goos        string
	run         runner
	lookPath    func(file string) (string, error)
	skipInstall bool
	gate        *ui.Gate

	// profileDirs overrides profile discovery in tests.
	profileDirs func() []string
}

func newNSSStores(goos string, run runner, skipInstall bool, gate *ui.Gate) *nssStores {
	n := &nssStores{
		goos:        goos,
		run:         run,
		lookPath:    exec.LookPath,
		skipInstall: skipInstall,
		gate:        gate,
	}
	n.profileDirs = n.discoverProfiles
	return n
}

// discoverProfiles returns every per-user NSS database directory found in
// the usual browser locations, prefixed with the certutil database type.
func (n *nssStores) discoverProfiles() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var globs []string
	switch n.goos {
	case "linux":
		globs = []string{
			filepath.Join(home, ".mozilla", "firefox", "*"),
			filepath.Join(home, "snap", "firefox", "common", ".mozilla", "firefox", "*"),
			filepath.Join(home, ".pki", "nssdb"),
		}
	case "darwin":
		globs = []string{
			filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles", "*"),
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			globs = []string{filepath.Join(appData, "Mozilla", "Firefox", "Profiles", "*")}
		}
	}

	var dbs []string
	for _, g := range globs {
		matches, _ := filepath.Glob(g)
		for _, dir := range matches {
			if _, err := os.Stat(filepath.Join(dir, "cert9.db")); err == nil {
				dbs = append(dbs, "sql:"+dir)
			} else if _, err := os.Stat(filepath.Join(dir, "cert8.db")); err == nil {
				dbs = append(dbs, "dbm:"+dir)
			}
		}
	}
	return dbs
}

// certutilPath locates certutil, installing it when permitted.
func (n *nssStores) certutilPath() (string, error) {
	if path, err := n.lookPath("certutil"); err == nil {
		return path, nil
	}
	if n.goos == "darwin" {
		// Homebrew installs nss outside PATH.
		if out, err := n.run("brew", "--prefix", "nss"); err == nil {
			candidate := filepath.Join(strings.TrimSpace(string(out)), "bin", "certutil")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	if n.skipInstall {
		return "", &MissingDependencyError{Tool: "certutil", Hint: "certutil install disabled by configuration"}
	}
	if err := n.installCertutil(); err != nil {
		return "", err
	}
	if path, err := n.lookPath("certutil"); err == nil {
		return path, nil
	}
	return "", &MissingDependencyError{Tool: "certutil", Hint: "install libnss3-tools (linux) or nss (homebrew)"}
}

func (n *nssStores) installCertutil() error {
	switch n.goos {
	case "linux":
		if !n.gate.Confirm("certutil is needed to trust the CA in Firefox/Chromium. Install libnss3-tools?") {
			return &MissingDependencyError{Tool: "certutil", Hint: "install declined"}
		}
		if out, err := n.run("sudo", "apt-get", "install", "-y", "libnss3-tools"); err != nil {
			return fmt.Errorf("installing libnss3-tools: %v: %s", err, out)
		}
		return nil
	case "darwin":
		if !n.gate.Confirm("certutil is needed to trust the CA in Firefox. Install nss with Homebrew?") {
			return &MissingDependencyError{Tool: "certutil", Hint: "install declined"}
		}
		if out, err := n.run("brew", "install", "nss"); err != nil {
			return fmt.Errorf("installing nss: %v: %s", err, out)
		}
		return nil
	default:
		return &MissingDependencyError{Tool: "certutil", Hint: "no automated install on " + n.goos}
	}
}

// add inserts the CA into every discovered NSS database with the CA trust
// bit set. Missing profiles are not an error; a missing certutil is.
func (n *nssStores) add(certPath, commonName string) error {
	profiles := n.profileDirs()
	if len(profiles) == 0 {
		logrus.Debug("No NSS browser profiles found; nothing to do")
		return nil
	}

	certutil, err := n.certutilPath()
	if err != nil {
		return err
	}

	var failed []string
	for _, db := range profiles {
		out, err := n.run(certutil, "-A", "-d", db, "-t", "C,,", "-n", commonName, "-i", certPath)
		if err != nil {
			logrus.WithField("profile", db).WithError(err).Warn("certutil add failed")
			failed = append(failed, fmt.Sprintf("%s: %s", db, strings.TrimSpace(string(out))))
			continue
		}
		logrus.WithField("profile", db).Debug("CA added to NSS database")
	}
	if len(failed) == len(profiles) {
		return fmt.Errorf("all NSS databases rejected the certificate: %s", strings.Join(failed, "; "))
	}
	return nil
}

// remove deletes the CA from every discovered NSS database, tolerating
// databases that never held it.
func (n *nssStores) remove(commonName string) error {
	profiles := n.profileDirs()
	if len(profiles) == 0 {
		return nil
	}

	certutil, err := n.certutilPath()
	if err != nil {
		// Nothing we can do without certutil; the entries were optional
		// to begin with.
		logrus.WithError(err).Debug("certutil unavailable, skipping NSS removal")
		return nil
	}

	for _, db := range profiles {
		if _, err := n.run(certutil, "-D", "-d", db, "-n", commonName); err != nil {
			logrus.WithField("profile", db).Debug("NSS entry absent or not removable")
		}
	}
	return nil
}
