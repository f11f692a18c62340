package trust

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locert/internal/ui"
)

// fakeRunner records invoked commands and replies from a canned table.
type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fails   map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		fails:   make(map[string]bool),
	}
}

func (f *fakeRunner) run(name string, args ...string) ([]byte, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call)
	out := []byte(f.outputs[call])
	if f.fails[call] {
		return out, fmt.Errorf("exit status 1")
	}
	return out, nil
}

func (f *fakeRunner) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func TestForPlatform(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows"} {
		t.Run(goos, func(t *testing.T) {
			p, err := ForPlatform(goos)
			require.NoError(t, err)
			require.NotNil(t, p)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		_, err := ForPlatform("plan9")
		var unsupported *UnsupportedPlatformError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "plan9", unsupported.GOOS)
	})
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("linux"))
	assert.True(t, Supported("darwin"))
	assert.True(t, Supported("windows"))
	assert.False(t, Supported("plan9"))
}

func TestLinuxStoreInstall(t *testing.T) {
	fr := newFakeRunner()
	s := newLinuxStore(fr.run)
	s.certDir = t.TempDir()

	require.NoError(t, s.AddToSystemStore("/tmp/rootCA.crt"))

	assert.True(t, fr.called("sudo cp /tmp/rootCA.crt "+s.installedPath()))
	assert.True(t, fr.called("sudo update-ca-certificates"))
}

func TestLinuxStoreRemoveTolerant(t *testing.T) {
	fr := newFakeRunner()
	s := newLinuxStore(fr.run)
	s.certDir = t.TempDir()

	// Nothing installed: removal is a no-op, nothing runs.
	require.NoError(t, s.RemoveFromSystemStore("locert development CA", "/tmp/rootCA.crt"))
	assert.Empty(t, fr.calls)
	assert.False(t, s.IsInstalled("locert development CA"))
}

func TestDarwinStore(t *testing.T) {
	fr := newFakeRunner()
	s := newDarwinStore(fr.run)

	require.NoError(t, s.AddToSystemStore("/tmp/rootCA.crt"))
	assert.True(t, fr.called("sudo -p"))
	assert.True(t, fr.calls[0] != "" && strings.Contains(fr.calls[0], "security add-trusted-cert -d -r trustRoot"))

	t.Run("probe", func(t *testing.T) {
		fr := newFakeRunner()
		s := newDarwinStore(fr.run)
		call := "security find-certificate -c My CA " + systemKeychain
		fr.outputs[call] = `keychain entry "My CA"`
		assert.True(t, s.IsInstalled("My CA"))

		fr.fails[call] = true
		assert.False(t, s.IsInstalled("My CA"))
	})

	t.Run("remove skips absent entry", func(t *testing.T) {
		fr := newFakeRunner()
		s := newDarwinStore(fr.run)
		fr.fails["security find-certificate -c My CA "+systemKeychain] = true

		require.NoError(t, s.RemoveFromSystemStore("My CA", "/tmp/rootCA.crt"))
		assert.False(t, fr.called("sudo"))
	})
}

func TestWindowsStoreRemoveTolerant(t *testing.T) {
	fr := newFakeRunner()
	s := newWindowsStore(fr.run)
	call := "certutil -delstore Root My CA"
	fr.outputs[call] = "CertUtil: -delstore command FAILED: entry not found"
	fr.fails[call] = true

	require.NoError(t, s.RemoveFromSystemStore("My CA", ""))
}

func TestInstallerGateDeclined(t *testing.T) {
	fr := newFakeRunner()
	in := newInstaller(newLinuxStore(fr.run), Options{
		CommonName: "My CA",
		Gate:       ui.NewGate(func(string) bool { return false }),
	})

	err := in.Install("/tmp/rootCA.crt")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, fr.calls, "declined gate must not run privileged commands")
}

func TestUninstallGateDeclined(t *testing.T) {
	fr := newFakeRunner()
	in := newInstaller(newLinuxStore(fr.run), Options{
		CommonName: "My CA",
		Gate:       ui.NewGate(func(string) bool { return false }),
	})

	err := in.Uninstall("/tmp/rootCA.crt")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, fr.calls, "declined gate must not run privileged commands")
}

func TestNSSAdd(t *testing.T) {
	fr := newFakeRunner()
	n := newNSSStores("linux", fr.run, true, ui.AssumeYes())
	n.lookPath = func(string) (string, error) { return "/usr/bin/certutil", nil }
	n.profileDirs = func() []string { return []string{"sql:/home/dev/.pki/nssdb"} }

	require.NoError(t, n.add("/tmp/rootCA.crt", "My CA"))
	assert.Equal(t,
		"/usr/bin/certutil -A -d sql:/home/dev/.pki/nssdb -t C,, -n My CA -i /tmp/rootCA.crt",
		fr.calls[0])
}

func TestNSSAddNoProfiles(t *testing.T) {
	fr := newFakeRunner()
	n := newNSSStores("linux", fr.run, true, ui.AssumeYes())
	n.profileDirs = func() []string { return nil }

	// No profiles means nothing to do, not a failure.
	require.NoError(t, n.add("/tmp/rootCA.crt", "My CA"))
	assert.Empty(t, fr.calls)
}

func TestNSSAddMissingCertutil(t *testing.T) {
	fr := newFakeRunner()
	n := newNSSStores("linux", fr.run, true, ui.AssumeYes())
	n.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	n.profileDirs = func() []string { return []string{"sql:/home/dev/.pki/nssdb"} }

	err := n.add("/tmp/rootCA.crt", "My CA")
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "certutil", missing.Tool)
}

func TestNSSRemoveWithoutCertutil(t *testing.T) {
	fr := newFakeRunner()
	n := newNSSStores("linux", fr.run, true, ui.AssumeYes())
	n.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	n.profileDirs = func() []string { return []string{"sql:/home/dev/.pki/nssdb"} }

	// Removal of optional entries must not fail the uninstall.
	require.NoError(t, n.remove("My CA"))
}
