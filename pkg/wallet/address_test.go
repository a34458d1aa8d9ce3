package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EIP-55 reference vectors.
var checksummed = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestChecksum(t *testing.T) {
	for _, addr := range checksummed {
		assert.Equal(t, addr, Checksum(addr))
	}
}

func TestNormalize(t *testing.T) {
	for _, addr := range checksummed {
		got, err := Normalize(addr)
		require.NoError(t, err)
		assert.Equal(t, "0x"+lower(addr[2:]), got)
	}

	got, err := Normalize("  0X5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED ")
	require.NoError(t, err)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", got)

	got, err = Normalize("0x04a8e2c1b5f6a0b3e1d9c7f2a4b6c8d0e2f4a6b8c0d2e4f6a8b0c2d4e6f8a0b2")
	require.NoError(t, err)
	assert.Len(t, got, 66)
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD")
	assert.ErrorIs(t, err, ErrBadChecksum)

	for _, bad := range []string{"", "0x", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0xzz"} {
		_, err := Normalize(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
