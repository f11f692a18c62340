// Package certs generates and revokes per-domain leaf certificates
// signed by the locert root CA. Key generation, CSR construction and
// signing all go through the openssl subprocess; CA credentials are only
// touched inside the CA manager's scoped access window.
package certs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"locert/internal/audit"
	"locert/internal/openssl"
	"locert/internal/store"
)

// cryptoTool is the slice of the openssl wrapper this package needs.
type cryptoTool interface {
	Run(args ...string) ([]byte, error)
	CertExpiryDays(certPath string) int
}

// credentialSource provides scoped access to the CA key and certificate.
type credentialSource interface {
	WithCredentials(fn func(keyPath, certPath string) error) error
}

// Manager issues and revokes domain certificates for one config root.
type Manager struct {
	store    *store.Store
	tool     cryptoTool
	ca       credentialSource
	certDays int
}

// New returns a Manager issuing certificates valid for certDays.
func New(s *store.Store, tool cryptoTool, ca credentialSource, certDays int) *Manager {
	return &Manager{store: s, tool: tool, ca: ca, certDays: certDays}
}

// Generate creates the key, CSR and CA-signed certificate for the domain
// set. Callers hold the idempotency guard: Generate must only run when no
// certificate is cached for this exact set.
func (m *Manager) Generate(domains []string) error {
	dir := m.store.DomainDir(domains)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating domain directory: %w", err)
	}

	keyPath := m.store.DomainKeyPath(domains)
	if _, err := m.tool.Run("genrsa", "-out", keyPath, "2048"); err != nil {
		return err
	}
	if err := os.Chmod(keyPath, 0600); err != nil {
		return fmt.Errorf("restricting domain key permissions: %w", err)
	}

	conf, err := renderRequestConf(domains)
	if err != nil {
		return fmt.Errorf("rendering request config: %w", err)
	}
	confPath := m.store.DomainConfPath(domains)
	if err := os.WriteFile(confPath, conf, 0600); err != nil {
		return fmt.Errorf("writing request config: %w", err)
	}

	csrPath := m.store.DomainCSRPath(domains)
	if _, err := m.tool.Run("req", "-new",
		"-config", confPath,
		"-key", keyPath,
		"-out", csrPath); err != nil {
		return err
	}

	certPath := m.store.DomainCertPath(domains)
	err = m.ca.WithCredentials(func(caKeyPath, caCertPath string) error {
		_, err := m.tool.Run("ca",
			"-config", m.store.CAConfPath(),
			"-in", csrPath,
			"-out", certPath,
			"-keyfile", caKeyPath,
			"-cert", caCertPath,
			"-days", strconv.Itoa(m.certDays),
			"-batch")
		return err
	})
	if err != nil {
		return err
	}

	id := store.DomainSetID(domains)
	audit.LogIssuance(id, false)
	logrus.WithField("domains", id).Info("Domain certificate issued")
	return nil
}

// Revoke marks the domain set's certificate revoked in the CA database.
// Revocation happens before the caller deletes the domain directory:
// deleting first would lose the ability to revoke. A certificate the CA
// already considers revoked is not an error.
func (m *Manager) Revoke(domains []string) error {
	certPath := m.store.DomainCertPath(domains)
	if _, err := os.Stat(certPath); err != nil {
		return fmt.Errorf("no certificate to revoke: %w", err)
	}

	err := m.ca.WithCredentials(func(caKeyPath, caCertPath string) error {
		_, err := m.tool.Run("ca",
			"-config", m.store.CAConfPath(),
			"-revoke", certPath,
			"-keyfile", caKeyPath,
			"-cert", caCertPath)
		return err
	})
	if err != nil {
		var toolErr *openssl.ToolError
		if errors.As(err, &toolErr) && strings.Contains(toolErr.Stderr, "lready revoked") {
			logrus.WithField("domains", store.DomainSetID(domains)).Debug("Certificate was already revoked")
		} else {
			return err
		}
	}

	audit.Log(audit.EventCertRevoked, "info", "Domain certificate revoked", map[string]interface{}{
		"domains": store.DomainSetID(domains),
	})
	return nil
}

// ExpiryDays returns the days until the certificate covering domain
// expires, or -1 when no certificate exists or the query fails.
func (m *Manager) ExpiryDays(domain string) int {
	domains := []string{domain}
	if !m.store.HasDomainCert(domains) {
		return -1
	}
	return m.tool.CertExpiryDays(m.store.DomainCertPath(domains))
}
