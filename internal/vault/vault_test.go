package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptDecryptRoundtrip(t *testing.T) {
	v, err := New(testKey, nil)
	require.NoError(t, err)

	tests := []string{
		"hunter2",
		"",
		"päss wörd with ünicode",
		strings.Repeat("long", 100),
	}

	for _, plaintext := range tests {
		blob, err := v.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptFreshIVPerCall(t *testing.T) {
	v, err := New(testKey, nil)
	require.NoError(t, err)

	a, err := v.Encrypt("same input")
	require.NoError(t, err)
	b, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same plaintext must differ")
}

func TestDecryptMalformedBlob(t *testing.T) {
	v, err := New(testKey, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"no separator", "deadbeef"},
		{"bad iv hex", "zzzz:deadbeef"},
		{"short iv", "dead:beef"},
		{"bad ciphertext hex", "00000000000000000000000000000000:zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.blob)
			assert.ErrorIs(t, err, ErrDecryption)
		})
	}
}

func TestNewRejectsWrongKeySize(t *testing.T) {
	_, err := New("deadbeef", nil)
	assert.Error(t, err)

	_, err = New("not hex at all", nil)
	assert.Error(t, err)
}

func TestEphemeralKeyWorksWithinProcess(t *testing.T) {
	v, err := New("", nil)
	require.NoError(t, err)
	assert.True(t, v.Ephemeral())

	blob, err := v.Encrypt("secret")
	require.NoError(t, err)
	got, err := v.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	// A second vault has a different random key and must not decode the blob
	// into the original plaintext
	other, err := New("", nil)
	require.NoError(t, err)
	decoded, err := other.Decrypt(blob)
	if err == nil {
		assert.NotEqual(t, "secret", decoded)
	}
}
