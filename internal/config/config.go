// Package config defines configuration structures and loading logic for
// locert. It supports YAML configuration files with sensible defaults;
// anything not set in the file keeps its default value.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"locert/internal/store"
)

type Config struct {
	// ConfigRoot overrides where CA material and domain certificates are
	// stored. Empty means the platform default.
	ConfigRoot string `yaml:"configRoot"`

	Trust   TrustConfig `yaml:"trust"`
	CA      CAConfig    `yaml:"ca"`
	Logging LogConfig   `yaml:"logging"`
}

type TrustConfig struct {
	// SkipHostsFile disables loopback hosts-file entries for issued domains.
	SkipHostsFile bool `yaml:"skipHostsFile"`
	// SkipBrowserStores disables NSS/browser trust-store installation.
	SkipBrowserStores bool `yaml:"skipBrowserStores"`
	// RequireBrowserStores turns a failed browser-store install into a
	// fatal error instead of a warning.
	RequireBrowserStores bool `yaml:"requireBrowserStores"`
	// SkipCertutilInstall stops locert from installing the NSS certutil
	// tooling when it is missing.
	SkipCertutilInstall bool `yaml:"skipCertutilInstall"`
	// AssumeYes suppresses the interactive confirmation prompt before
	// privileged trust-store mutations.
	AssumeYes bool `yaml:"assumeYes"`
}

type CAConfig struct {
	// CommonName appears in the root certificate subject and is the handle
	// used to find and remove the CA in trust stores.
	CommonName string `yaml:"commonName"`
	// ValidityDays applies to the root certificate.
	ValidityDays int `yaml:"validityDays"`
	// CertValidityDays applies to issued domain certificates.
	CertValidityDays int `yaml:"certValidityDays"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// AuditPath overrides where the JSON-lines audit log is written.
	AuditPath string `yaml:"auditPath"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ConfigRoot: store.DefaultRoot(),
		CA: CAConfig{
			CommonName:       "locert development CA",
			ValidityDays:     825,
			CertValidityDays: 825,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file layered over the defaults. An
// empty path returns the defaults; a missing file at an explicit path is
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.ConfigRoot == "" {
		cfg.ConfigRoot = store.DefaultRoot()
	}
	return cfg, nil
}
