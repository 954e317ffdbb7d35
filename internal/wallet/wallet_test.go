package wallet

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validMnemonic is the standard BIP-39 test vector.
const validMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testKeypair(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := base58.Encode(priv.Public().(ed25519.PublicKey))
	return priv, pub
}

func TestImportBracketedIntList(t *testing.T) {
	priv, pub := testKeypair(t)

	parts := make([]string, len(priv))
	for i, b := range priv {
		parts[i] = fmt.Sprintf("%d", b)
	}
	input := "[" + strings.Join(parts, ",") + "]"

	w, err := Import(input)
	require.NoError(t, err)
	assert.Equal(t, pub, w.PublicKey())
}

func TestImportBracketedSeedList(t *testing.T) {
	priv, pub := testKeypair(t)

	seed := priv.Seed()
	parts := make([]string, len(seed))
	for i, b := range seed {
		parts[i] = fmt.Sprintf("%d", b)
	}
	input := "[" + strings.Join(parts, ", ") + "]"

	w, err := Import(input)
	require.NoError(t, err)
	assert.Equal(t, pub, w.PublicKey())
}

func TestImportBase58Secret(t *testing.T) {
	priv, pub := testKeypair(t)

	w, err := Import(base58.Encode(priv))
	require.NoError(t, err)
	assert.Equal(t, pub, w.PublicKey())

	w, err = Import(base58.Encode(priv.Seed()))
	require.NoError(t, err)
	assert.Equal(t, pub, w.PublicKey())
}

func TestImportMnemonicIsDeterministic(t *testing.T) {
	w1, err := Import(validMnemonic)
	require.NoError(t, err)
	w2, err := Import("  " + validMnemonic + "  ")
	require.NoError(t, err)

	assert.NotEmpty(t, w1.PublicKey())
	assert.Equal(t, w1.PublicKey(), w2.PublicKey())
}

func TestImportRejectsBadChecksumMnemonic(t *testing.T) {
	for _, words := range []int{12, 24} {
		// Valid words whose checksum does not verify.
		bad := strings.TrimSuffix(strings.Repeat("abandon ", words), " ")
		_, err := Import(bad)
		assert.ErrorIs(t, err, ErrImport, "%d words", words)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	for _, input := range []string{
		"",
		"not a key at all",
		"[1,2,3]",
		"[300,1,2]",
		"0OIl", // not valid base58
	} {
		_, err := Import(input)
		assert.ErrorIs(t, err, ErrImport, "input %q", input)
	}
}

func TestManagerKeepsWalletOnFailedImport(t *testing.T) {
	m := NewManager(10)

	priv, pub := testKeypair(t)
	_, err := m.Import(1, base58.Encode(priv))
	require.NoError(t, err)

	_, err = m.Import(1, "broken input")
	require.Error(t, err)

	w, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, pub, w.PublicKey())
}

func TestManagerBalances(t *testing.T) {
	m := NewManager(10)
	assert.Equal(t, 10.0, m.Balance(5))

	m.SetBalance(5, 2.5)
	assert.Equal(t, 2.5, m.Balance(5))
	assert.Equal(t, 10.0, m.Balance(6))
}
