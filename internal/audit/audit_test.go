package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
)

func TestAuditRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Close()

	Log(EventCACreated, "info", "Root CA generated", map[string]interface{}{
		"cert": "/tmp/rootCA.crt",
	})
	LogIssuance("a.test+b.test", false)
	LogKeyAccess("widen", true)

	path := GetLogPath()
	if path == "" {
		t.Fatal("no audit log path")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != EventCACreated {
		t.Errorf("first event type = %s", events[0].Type)
	}
	if events[1].Type != EventCertIssued {
		t.Errorf("second event type = %s", events[1].Type)
	}
	if events[2].Type != EventCAKeyAccess {
		t.Errorf("third event type = %s", events[2].Type)
	}
	if events[0].ProcessID == 0 {
		t.Error("process id not recorded")
	}
}

func TestLogWithoutInitialize(t *testing.T) {
	// Must not panic; falls back to the standard logger.
	Log(EventCertRemoved, "info", "no-op", nil)
}
