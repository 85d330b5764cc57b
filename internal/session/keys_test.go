package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeKey(t *testing.T, block *pem.Block) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_test")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestCheckKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	assert.NoError(t, CheckKey(writeKey(t, block)))
}

func TestCheckKeyPassphraseProtected(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)

	// Encrypted keys are usable through the agent, so the preflight passes.
	assert.NoError(t, CheckKey(writeKey(t, block)))
}

func TestCheckKeyGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_test")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	assert.ErrorIs(t, CheckKey(path), ErrKeyUnusable)
}

func TestCheckKeyMissingFile(t *testing.T) {
	assert.ErrorIs(t, CheckKey(filepath.Join(t.TempDir(), "absent")), ErrKeyUnusable)
}
