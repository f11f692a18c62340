// Package store computes the on-disk layout for the locert config root:
// the root CA material, the openssl CA database, and one directory per
// unique domain set. Path computation is pure; the only filesystem access
// here is existence probing and directory listing.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

const (
	// DirName is the directory created under the user config dir.
	DirName = "locert"

	rootCAKeyFile  = "rootCA.key"
	rootCACertFile = "rootCA.crt"

	domainsDir = "domains"

	// Per-domain-set file names.
	DomainKeyFile  = "private-key.key"
	DomainCertFile = "certificate.crt"
	DomainCSRFile  = "certificate-signing-request.csr"
	DomainConfFile = "openssl.cnf"

	// Openssl CA database files, kept next to the root CA material.
	caIndexFile   = "index.txt"
	caSerialFile  = "serial"
	caNewCertsDir = "certs"
)

// InvalidDomainError reports a domain name that failed validation. It is
// returned before any filesystem or subprocess work happens.
type InvalidDomainError struct {
	Domain string
	Reason string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain %q: %s", e.Domain, e.Reason)
}

// Store resolves paths under a single config root.
type Store struct {
	root string
}

// New returns a Store rooted at dir. If dir is empty the default root is
// used: $LOCERT_DIR, or <user config dir>/locert.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultRoot()
	}
	if dir == "" {
		return nil, fmt.Errorf("cannot determine config root; set LOCERT_DIR")
	}
	return &Store{root: dir}, nil
}

// DefaultRoot returns the default config root for this user, or "" when no
// user config directory can be determined.
func DefaultRoot() string {
	if dir := os.Getenv("LOCERT_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, DirName)
}

// Root returns the config root directory.
func (s *Store) Root() string { return s.root }

// RootCAKeyPath returns the path of the CA private key.
func (s *Store) RootCAKeyPath() string { return filepath.Join(s.root, rootCAKeyFile) }

// RootCACertPath returns the path of the CA certificate.
func (s *Store) RootCACertPath() string { return filepath.Join(s.root, rootCACertFile) }

// CAIndexPath returns the openssl CA database index file.
func (s *Store) CAIndexPath() string { return filepath.Join(s.root, caIndexFile) }

// CASerialPath returns the openssl CA serial file.
func (s *Store) CASerialPath() string { return filepath.Join(s.root, caSerialFile) }

// CANewCertsDir returns the directory openssl writes issued certs into.
func (s *Store) CANewCertsDir() string { return filepath.Join(s.root, caNewCertsDir) }

// CAConfPath returns the generated openssl CA configuration file.
func (s *Store) CAConfPath() string { return filepath.Join(s.root, "rootCA.cnf") }

// DomainsRoot returns the directory holding all per-domain-set directories.
func (s *Store) DomainsRoot() string { return filepath.Join(s.root, domainsDir) }

// DomainDir returns the directory for the given domain set.
func (s *Store) DomainDir(domains []string) string {
	return filepath.Join(s.DomainsRoot(), DomainSetID(domains))
}

// DomainKeyPath returns the private key path for the domain set.
func (s *Store) DomainKeyPath(domains []string) string {
	return filepath.Join(s.DomainDir(domains), DomainKeyFile)
}

// DomainCertPath returns the certificate path for the domain set.
func (s *Store) DomainCertPath(domains []string) string {
	return filepath.Join(s.DomainDir(domains), DomainCertFile)
}

// DomainCSRPath returns the CSR path for the domain set.
func (s *Store) DomainCSRPath(domains []string) string {
	return filepath.Join(s.DomainDir(domains), DomainCSRFile)
}

// DomainConfPath returns the generated request config path for the domain set.
func (s *Store) DomainConfPath(domains []string) string {
	return filepath.Join(s.DomainDir(domains), DomainConfFile)
}

// HasRootCA reports whether the CA private key exists. Presence of the key
// file is the idempotency guard for CA installation.
func (s *Store) HasRootCA() bool {
	_, err := os.Stat(s.RootCAKeyPath())
	return err == nil
}

// HasDomainCert reports whether a certificate is cached for the domain set.
func (s *Store) HasDomainCert(domains []string) bool {
	_, err := os.Stat(s.DomainCertPath(domains))
	return err == nil
}

// ListDomainSets returns the identifiers of every cached domain set, sorted.
func (s *Store) ListDomainSets() ([]string, error) {
	entries, err := os.ReadDir(s.DomainsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DomainSetID returns the canonical identifier for a set of domains. It is
// order-independent: the lowercased, deduplicated domains are sorted and
// joined with "+", so ["b.test","a.test"] and ["a.test","b.test"] resolve
// to the same directory.
func DomainSetID(domains []string) string {
	return strings.Join(CanonicalDomains(domains), "+")
}

// CanonicalDomains returns the lowercased, trimmed, deduplicated and
// sorted form of the requested domains.
func CanonicalDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	canonical := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		canonical = append(canonical, d)
	}
	sort.Strings(canonical)
	return canonical
}

// ValidateDomains checks every requested domain against a permissive DNS
// name syntax. Wildcards are rejected, Unicode labels are allowed, and
// "localhost" is always accepted. The first failing domain is reported as
// an *InvalidDomainError.
func ValidateDomains(domains []string) error {
	if len(domains) == 0 {
		return &InvalidDomainError{Reason: "no domains requested"}
	}
	for _, d := range domains {
		if err := validateDomain(d); err != nil {
			return err
		}
	}
	return nil
}

func validateDomain(domain string) error {
	name := strings.TrimSpace(domain)
	if name == "" {
		return &InvalidDomainError{Domain: domain, Reason: "empty name"}
	}
	if strings.EqualFold(name, "localhost") {
		return nil
	}
	if strings.Contains(name, "*") {
		return &InvalidDomainError{Domain: domain, Reason: "wildcards are not supported"}
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return &InvalidDomainError{Domain: domain, Reason: "empty label"}
	}
	// "+" joins domains in set identifiers, so a domain containing it
	// would make two distinct sets share one directory.
	if strings.ContainsAny(name, " /\\+") {
		return &InvalidDomainError{Domain: domain, Reason: "illegal character"}
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return &InvalidDomainError{Domain: domain, Reason: "not a valid DNS name"}
	}
	return nil
}
