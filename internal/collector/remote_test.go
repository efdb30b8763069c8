package collector

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testSSHKeyFile creates a temporary Ed25519 SSH key file for tests and returns
// its path. The key is cleaned up automatically when the test finishes.
func testSSHKeyFile(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	privPEM, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(privPEM), 0o600))
	return keyPath
}

func newRemoteCollector(t *testing.T, devices []string) *RemoteCollector {
	t.Helper()
	reg, s := newTestDeps(t)
	r, err := NewRemoteCollector(RemoteConfig{
		Name:         "nas",
		Host:         "192.168.1.50:22",
		User:         "root",
		KeyPath:      testSSHKeyFile(t),
		Devices:      devices,
		PollInterval: time.Minute,
	}, reg, s)
	require.NoError(t, err)
	return r
}

func TestNewRemoteCollector_BadKeyPath(t *testing.T) {
	reg, s := newTestDeps(t)
	_, err := NewRemoteCollector(RemoteConfig{
		Name: "nas", Host: "x:22", User: "root",
		KeyPath: "/nonexistent/key",
	}, reg, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading SSH key")
}

func TestNewRemoteCollector_InvalidKey(t *testing.T) {
	reg, s := newTestDeps(t)
	keyPath := filepath.Join(t.TempDir(), "bad_key")
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

	_, err := NewRemoteCollector(RemoteConfig{
		Name: "nas", Host: "x:22", User: "root", KeyPath: keyPath,
	}, reg, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing SSH key")
}

func TestRemoteCollector_NameAndInterval(t *testing.T) {
	r := newRemoteCollector(t, []string{"/dev/sda"})
	assert.Equal(t, "remote:nas", r.Name())
	assert.Equal(t, time.Minute, r.Interval())
}

func TestRemoteCollector_Collect(t *testing.T) {
	r := newRemoteCollector(t, []string{"/dev/sda"})
	r.run = func(_ context.Context, command string) ([]byte, error) {
		assert.Equal(t, "smartctl -j -i -A /dev/sda", command)
		return []byte(`{
			"model_name": "ST4000VN008",
			"serial_number": "ZDH1ABCD",
			"temperature": {"current": 41}
		}`), nil
	}

	require.NoError(t, r.Collect(context.Background()))

	d := r.registry.Get("nas:sda")
	require.NotNil(t, d)
	assert.Equal(t, "remote", d.Source)
	assert.Equal(t, "192.168.1.50:22", d.Host)
	assert.Equal(t, "ST4000VN008", d.Model)
	require.NotNil(t, d.LastReading)
	assert.Equal(t, int32(41000), d.LastReading.Current)

	snaps, err := r.store.QueryTempHistory("nas:sda", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "smart", snaps[0].Strategy)
}

func TestRemoteCollector_CollectWithScan(t *testing.T) {
	r := newRemoteCollector(t, nil)
	r.run = func(_ context.Context, command string) ([]byte, error) {
		if command == "smartctl -j --scan" {
			return []byte(`{"devices": [{"name": "/dev/sdb"}]}`), nil
		}
		return []byte(`{"temperature": {"current": 33}}`), nil
	}

	require.NoError(t, r.Collect(context.Background()))

	d := r.registry.Get("nas:sdb")
	require.NotNil(t, d)
	assert.Equal(t, int32(33000), d.LastReading.Current)
}

func TestRemoteCollector_ScanFailureIsNonFatal(t *testing.T) {
	r := newRemoteCollector(t, nil)
	r.run = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	require.NoError(t, r.Collect(context.Background()))
}

func TestRemoteCollector_PollErrorIsNonFatal(t *testing.T) {
	r := newRemoteCollector(t, []string{"/dev/sda"})
	r.run = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	require.NoError(t, r.Collect(context.Background()))
	assert.Nil(t, r.registry.Get("nas:sda"))
}

func TestRemoteCollector_AcceptsExitErrorWithOutput(t *testing.T) {
	// smartctl sets informational exit bits even when it prints a full
	// report; the output must still be parsed.
	r := newRemoteCollector(t, []string{"/dev/sda"})
	r.run = func(context.Context, string) ([]byte, error) {
		return []byte(`{"temperature": {"current": 39}}`), errors.New("exit status 64")
	}

	require.NoError(t, r.Collect(context.Background()))

	d := r.registry.Get("nas:sda")
	require.NotNil(t, d)
	assert.Equal(t, int32(39000), d.LastReading.Current)
}
