package crypto

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealRoundTrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	dir := t.TempDir()
	plain := filepath.Join(dir, "app.db_20240101.zip")
	require.NoError(t, os.WriteFile(plain, []byte("archive bytes"), 0o644))

	sealed, err := Seal(plain, identity.Recipient())
	require.NoError(t, err)
	assert.Equal(t, plain+".age", sealed)

	// Plaintext must be gone.
	_, err = os.Stat(plain)
	assert.True(t, os.IsNotExist(err))

	in, err := os.Open(sealed)
	require.NoError(t, err)
	defer in.Close()

	r, err := age.Decrypt(in, identity)
	require.NoError(t, err)

	decrypted, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive bytes"), decrypted)
}

func TestSealMissingInput(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	_, err = Seal(filepath.Join(t.TempDir(), "missing.zip"), identity.Recipient())
	assert.Error(t, err)
}

func TestBLAKE3File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	first, err := BLAKE3File(file)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := BLAKE3File(file)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(file, []byte("hello!"), 0o644))
	changed, err := BLAKE3File(file)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestBLAKE3FileMissing(t *testing.T) {
	_, err := BLAKE3File(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
