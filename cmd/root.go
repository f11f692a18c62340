// Package cmd implements the locert command line interface on top of the
// certificate engine.
package cmd

import (
	"github.com/sirupsen/logrus"

	"locert/internal/audit"
	"locert/internal/config"
	"locert/internal/engine"
	"locert/internal/ui"
)

// ConfigFile is bound to the persistent --config flag by main.
var ConfigFile string

// AssumeYes is bound to the persistent --yes flag by main; it suppresses
// the confirmation prompt before privileged trust-store changes.
var AssumeYes bool

// loadEngine builds a wired engine from the configuration file and flags.
func loadEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return nil, nil, err
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(level)
	}

	auditDir := cfg.Logging.AuditPath
	if auditDir == "" {
		auditDir = cfg.ConfigRoot
	}
	if err := audit.Initialize(auditDir); err != nil {
		logrus.WithError(err).Warn("Audit logging unavailable")
	}

	var gate *ui.Gate
	if AssumeYes || cfg.Trust.AssumeYes {
		gate = ui.AssumeYes()
	}

	e, err := engine.New(cfg, gate)
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}
