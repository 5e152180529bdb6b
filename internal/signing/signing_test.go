package signing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testKeyBits keeps key generation fast in tests.
const testKeyBits = 1024

// TestSignVerify covers the happy path and every tamper case: flipped
// signature bits, substituted content and the wrong key.
func TestSignVerify(t *testing.T) {
	t.Parallel()

	key, err := GenerateKeyPair(testKeyBits)
	require.NoError(t, err)

	content := []byte("artifact bundle bytes")

	sig, err := Sign(key, content)
	require.NoError(t, err)
	require.NoError(t, Verify(&key.PublicKey, content, sig))

	// Flipped signature bit.
	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0x01
	require.ErrorIs(t, Verify(&key.PublicKey, content, tampered), ErrSignatureMismatch)

	// Substituted content.
	require.ErrorIs(t, Verify(&key.PublicKey, []byte("other bytes"), sig), ErrSignatureMismatch)

	// Wrong key.
	otherKey, err := GenerateKeyPair(testKeyBits)
	require.NoError(t, err)
	require.ErrorIs(t, Verify(&otherKey.PublicKey, content, sig), ErrSignatureMismatch)
}

// TestSaveLoadKeyPair round-trips both halves through PEM files and checks
// file permissions.
func TestSaveLoadKeyPair(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "ota_private.pem")
	publicPath := filepath.Join(dir, "ota_public.pem")

	key, err := GenerateKeyPair(testKeyBits)
	require.NoError(t, err)
	require.NoError(t, SaveKeyPair(key, privatePath, publicPath))

	info, err := os.Stat(privatePath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loadedPrivate, err := LoadPrivateKey(privatePath)
	require.NoError(t, err)
	require.True(t, key.Equal(loadedPrivate))

	loadedPublic, err := LoadPublicKey(publicPath)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(loadedPublic))

	// A signature by the loaded private key verifies with the loaded public key.
	content := []byte("manifest bytes")
	sig, err := Sign(loadedPrivate, content)
	require.NoError(t, err)
	require.NoError(t, Verify(loadedPublic, content, sig))
}

// TestLoadKey_Errors covers missing files and non-PEM contents.
func TestLoadKey_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := LoadPublicKey(filepath.Join(dir, "missing.pem"))
	require.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0o600))

	_, err = LoadPublicKey(garbage)
	require.ErrorIs(t, err, errNoPEMBlock)

	_, err = LoadPrivateKey(garbage)
	require.ErrorIs(t, err, errNoPEMBlock)
}
