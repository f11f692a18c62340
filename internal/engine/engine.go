// Package engine exposes the public certificate operations: provisioning,
// cache queries, removal and expiry introspection. It owns the
// orchestration order (validate, heal the CA, install it on first run,
// issue the domain certificate) while the mechanics live in the ca,
// certs, trust and openssl packages.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"locert/internal/audit"
	"locert/internal/ca"
	"locert/internal/certs"
	"locert/internal/config"
	"locert/internal/openssl"
	"locert/internal/store"
	"locert/internal/trust"
	"locert/internal/ui"
)

// CAReturnMode selects how Provision hands back CA material.
type CAReturnMode int

const (
	// CAReturnNone omits CA material from the result.
	CAReturnNone CAReturnMode = iota
	// CAReturnPath sets Result.CAPath.
	CAReturnPath
	// CAReturnBuffer sets Result.CAPEM.
	CAReturnBuffer
)

// ProvisionOptions adjusts a single Provision call.
type ProvisionOptions struct {
	// SkipHostsFile disables the loopback hosts-file updates for this
	// call.
	SkipHostsFile bool
	// ReturnCA controls whether the result carries the CA certificate,
	// as a path or as a buffer.
	ReturnCA CAReturnMode
}

// Result is the provisioned certificate material.
type Result struct {
	KeyPEM  []byte
	CertPEM []byte
	// CAPEM is set when ReturnCA is CAReturnBuffer.
	CAPEM []byte
	// CAPath is set when ReturnCA is CAReturnPath.
	CAPath string
}

type caManager interface {
	Exists() bool
	Installed() bool
	Install() error
	RepairTrust() error
	EnsureReadable() error
	Uninstall() error
	ExpiryDays() int
}

type certIssuer interface {
	Generate(domains []string) error
	Revoke(domains []string) error
	ExpiryDays(domain string) int
}

type hostsUpdater interface {
	AddHostsEntry(domain string) error
}

// Engine ties the store, CA manager, certificate issuer and trust
// installer together behind the public operations.
type Engine struct {
	store *store.Store
	ca    caManager
	certs certIssuer
	hosts hostsUpdater

	skipHosts bool
	hostsWG   sync.WaitGroup
}

// New builds a fully wired Engine from configuration. It fails fast when
// the platform has no trust-store variant or openssl is missing.
func New(cfg *config.Config, gate *ui.Gate) (*Engine, error) {
	s, err := store.New(cfg.ConfigRoot)
	if err != nil {
		return nil, err
	}

	tool := openssl.New()
	if err := tool.Check(); err != nil {
		return nil, err
	}

	if gate == nil {
		if cfg.Trust.AssumeYes {
			gate = ui.AssumeYes()
		} else {
			gate = ui.NewGate(nil)
		}
	}

	installer, err := trust.NewInstaller(trust.Options{
		CommonName:           cfg.CA.CommonName,
		SkipBrowserStores:    cfg.Trust.SkipBrowserStores,
		RequireBrowserStores: cfg.Trust.RequireBrowserStores,
		SkipCertutilInstall:  cfg.Trust.SkipCertutilInstall,
		Gate:                 gate,
	})
	if err != nil {
		return nil, err
	}

	caMgr := ca.New(s, tool, installer, cfg.CA.CommonName, cfg.CA.ValidityDays, cfg.CA.CertValidityDays)
	certMgr := certs.New(s, tool, caMgr, cfg.CA.CertValidityDays)

	return &Engine{
		store:     s,
		ca:        caMgr,
		certs:     certMgr,
		hosts:     installer,
		skipHosts: cfg.Trust.SkipHostsFile,
	}, nil
}

// newEngine wires explicit components; used by tests.
func newEngine(s *store.Store, caMgr caManager, issuer certIssuer, hosts hostsUpdater) *Engine {
	return &Engine{store: s, ca: caMgr, certs: issuer, hosts: hosts}
}

// Provision returns the key and certificate for the domain set, creating
// the CA on first use and issuing the certificate when it is not cached.
// Validation happens before any filesystem or subprocess work.
func (e *Engine) Provision(domains []string, opts ProvisionOptions) (*Result, error) {
	if err := store.ValidateDomains(domains); err != nil {
		return nil, err
	}

	if err := e.EnsureCA(); err != nil {
		return nil, err
	}

	unlock, err := e.lockDomainSet(domains)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if e.store.HasDomainCert(domains) {
		audit.LogIssuance(store.DomainSetID(domains), true)
	} else if err := e.certs.Generate(domains); err != nil {
		return nil, err
	}

	if !opts.SkipHostsFile && !e.skipHosts {
		e.updateHostsEntries(domains)
	}

	return e.buildResult(domains, opts)
}

// EnsureCA creates the CA on first run, and on later runs repairs key
// permissions and a half-finished trust installation.
func (e *Engine) EnsureCA() error {
	if !e.ca.Exists() {
		return e.ca.Install()
	}
	if err := e.ca.EnsureReadable(); err != nil {
		return err
	}
	if !e.ca.Installed() {
		logrus.Warn("Root CA present but not trusted; repairing trust-store installation")
		return e.ca.RepairTrust()
	}
	return nil
}

// updateHostsEntries spawns one fire-and-forget task per domain. The
// tasks are never awaited: callers must not assume the hosts file is
// updated by the time Provision returns, and failures are logged, not
// surfaced.
func (e *Engine) updateHostsEntries(domains []string) {
	for _, domain := range store.CanonicalDomains(domains) {
		e.hostsWG.Add(1)
		go func(d string) {
			defer e.hostsWG.Done()
			if err := e.hosts.AddHostsEntry(d); err != nil {
				logrus.WithError(err).WithField("domain", d).Warn("Hosts file update failed")
			}
		}(domain)
	}
}

// WaitHosts blocks until every in-flight hosts-file task finishes, or
// until timeout elapses. It reports whether all tasks completed. Callers
// that exit right after Provision should drain here so the background
// updates are not killed with the process.
func (e *Engine) WaitHosts(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.hostsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Engine) buildResult(domains []string, opts ProvisionOptions) (*Result, error) {
	keyPEM, err := os.ReadFile(e.store.DomainKeyPath(domains))
	if err != nil {
		return nil, fmt.Errorf("reading domain key: %w", err)
	}
	certPEM, err := os.ReadFile(e.store.DomainCertPath(domains))
	if err != nil {
		return nil, fmt.Errorf("reading domain certificate: %w", err)
	}

	res := &Result{KeyPEM: keyPEM, CertPEM: certPEM}
	switch opts.ReturnCA {
	case CAReturnPath:
		res.CAPath = e.store.RootCACertPath()
	case CAReturnBuffer:
		caPEM, err := os.ReadFile(e.store.RootCACertPath())
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
		res.CAPEM = caPEM
	}
	return res, nil
}

// lockDomainSet guards concurrent generation for the same domain set with
// an exclusive lock file. Waiters poll briefly before giving up.
func (e *Engine) lockDomainSet(domains []string) (func(), error) {
	if err := os.MkdirAll(e.store.DomainsRoot(), 0700); err != nil {
		return nil, fmt.Errorf("creating domains directory: %w", err)
	}
	lockPath := filepath.Join(e.store.DomainsRoot(), "."+store.DomainSetID(domains)+".lock")

	for attempt := 0; attempt < 50; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring domain lock: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("domain set %q is locked by another invocation", store.DomainSetID(domains))
}

// HasCertificate reports whether a certificate is cached for the exact
// domain set.
func (e *Engine) HasCertificate(domains []string) bool {
	if store.ValidateDomains(domains) != nil {
		return false
	}
	return e.store.HasDomainCert(domains)
}

// ListDomains returns the identifier of every configured domain set.
func (e *Engine) ListDomains() ([]string, error) {
	return e.store.ListDomainSets()
}

// RemoveDomain revokes the domain set's certificate through the CA, then
// deletes its directory. Revocation runs first so the certificate file is
// still available to revoke.
func (e *Engine) RemoveDomain(domains []string) error {
	if err := store.ValidateDomains(domains); err != nil {
		return err
	}
	if !e.store.HasDomainCert(domains) {
		return fmt.Errorf("no certificate configured for %q", store.DomainSetID(domains))
	}

	if err := e.certs.Revoke(domains); err != nil {
		return err
	}
	if err := os.RemoveAll(e.store.DomainDir(domains)); err != nil {
		return fmt.Errorf("removing domain directory: %w", err)
	}
	audit.Log(audit.EventCertRemoved, "info", "Domain certificate removed", map[string]interface{}{
		"domains": store.DomainSetID(domains),
	})
	return nil
}

// RemoveAll uninstalls the CA from every trust store and deletes all
// certificate material under the config root.
func (e *Engine) RemoveAll() error {
	return e.ca.Uninstall()
}

// CAExpiryDays returns the days until the root certificate expires, -1
// before installation or on error.
func (e *Engine) CAExpiryDays() int {
	return e.ca.ExpiryDays()
}

// DomainExpiryDays returns the days until the certificate for domain
// expires, -1 when absent or on error.
func (e *Engine) DomainExpiryDays(domain string) int {
	return e.certs.ExpiryDays(domain)
}
