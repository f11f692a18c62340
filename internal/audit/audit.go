// Package audit provides security audit logging for locert. It records
// the sensitive operations of the certificate engine: CA creation and
// trust-store installs, private-key access windows, certificate issuance
// and revocation.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the type of audit event
type EventType string

const (
	// Certificate authority lifecycle
	EventCACreated     EventType = "CA_CREATED"
	EventCAInstalled   EventType = "CA_INSTALLED"
	EventCAUninstalled EventType = "CA_UNINSTALLED"
	EventCAKeyAccess   EventType = "CA_KEY_ACCESS"
	EventCAKeyRepaired EventType = "CA_KEY_REPAIRED"

	// Domain certificate lifecycle
	EventCertIssued   EventType = "CERT_ISSUED"
	EventCertCacheHit EventType = "CERT_CACHE_HIT"
	EventCertRevoked  EventType = "CERT_REVOKED"
	EventCertRemoved  EventType = "CERT_REMOVED"

	// Trust store mutations
	EventTrustStoreAdd    EventType = "TRUST_STORE_ADD"
	EventTrustStoreRemove EventType = "TRUST_STORE_REMOVE"
	EventHostsFileUpdate  EventType = "HOSTS_FILE_UPDATE"
)

// Event represents an audit log entry
type Event struct {
	Timestamp   time.Time              `json:"timestamp"`
	Type        EventType              `json:"type"`
	Severity    string                 `json:"severity"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	User        string                 `json:"user,omitempty"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
}

// Logger handles audit logging
type Logger struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	logPath string
}

var (
	defaultLogger *Logger
	mu            sync.Mutex
)

// Initialize sets up the audit logger writing under dir. Safe to call more
// than once; later calls are no-ops while a logger is open.
func Initialize(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil {
		return nil
	}

	auditDir := filepath.Join(dir, "audit")
	if err := os.MkdirAll(auditDir, 0700); err != nil {
		return err
	}

	logFile := fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02"))
	logPath := filepath.Join(auditDir, logFile)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	defaultLogger = &Logger{
		file:    file,
		encoder: json.NewEncoder(file),
		logPath: logPath,
	}
	return nil
}

// Log records an audit event
func Log(eventType EventType, severity string, message string, details map[string]interface{}) {
	if defaultLogger == nil {
		// Fallback to regular logging if audit not initialized
		logrus.WithFields(logrus.Fields{
			"audit_type": eventType,
			"details":    details,
		}).Debug(message)
		return
	}

	event := Event{
		Timestamp:   time.Now(),
		Type:        eventType,
		Severity:    severity,
		Message:     message,
		Details:     details,
		ProcessID:   os.Getpid(),
		ProcessName: filepath.Base(os.Args[0]),
	}
	if user := os.Getenv("USER"); user != "" {
		event.User = user
	}

	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()

	if err := defaultLogger.encoder.Encode(event); err != nil {
		logrus.WithError(err).Error("Failed to write audit log")
	}
}

// LogIssuance logs domain certificate issuance, distinguishing cache hits.
func LogIssuance(domainSet string, cached bool) {
	eventType := EventCertIssued
	if cached {
		eventType = EventCertCacheHit
	}
	Log(eventType, "info", fmt.Sprintf("Certificate for %s", domainSet), map[string]interface{}{
		"domains": domainSet,
		"cached":  cached,
	})
}

// LogKeyAccess logs an access window on the CA private key.
func LogKeyAccess(operation string, success bool) {
	severity := "info"
	if !success {
		severity = "warning"
	}
	Log(EventCAKeyAccess, severity, fmt.Sprintf("CA key %s", operation), map[string]interface{}{
		"operation": operation,
		"success":   success,
	})
}

// Close closes the audit logger
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil {
		err := defaultLogger.file.Close()
		defaultLogger = nil
		return err
	}
	return nil
}

// GetLogPath returns the current audit log path
func GetLogPath() string {
	if defaultLogger != nil {
		return defaultLogger.logPath
	}
	return ""
}
