package ca

import (
	"strings"
	"testing"
)

func TestRenderCAConf(t *testing.T) {
	conf, err := renderCAConf("/home/dev/.config/locert", "Test Root CA", 825)
	if err != nil {
		t.Fatalf("renderCAConf: %v", err)
	}
	got := string(conf)

	for _, want := range []string{
		"database         = /home/dev/.config/locert/index.txt",
		"serial           = /home/dev/.config/locert/serial",
		"private_key      = /home/dev/.config/locert/rootCA.key",
		"default_days     = 825",
		"CN = Test Root CA",
		"basicConstraints       = critical, CA:TRUE, pathlen:0",
		"copy_extensions  = copy",
		"extendedKeyUsage       = serverAuth",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered config missing %q:\n%s", want, got)
		}
	}
}
