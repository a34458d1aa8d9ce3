package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	tok, err := Generate("s3cret", "0xabc", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := Parse("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseRejects(t *testing.T) {
	tok, err := Generate("s3cret", "0xabc", "", time.Hour)
	require.NoError(t, err)

	_, err = Parse("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := Generate("s3cret", "0xabc", "", -time.Minute)
	require.NoError(t, err)
	_, err = Parse("s3cret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("s3cret", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateEmptySecret(t *testing.T) {
	_, err := Generate("", "0xabc", "", time.Hour)
	assert.Error(t, err)
}
