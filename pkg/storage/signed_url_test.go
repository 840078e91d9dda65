package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("3f1c9a2e-7d43-4b1e-9d1a-0c8f6b2a4e51", "trend/trend_platform.pdf")
	require.NoError(t, err)
	require.False(t, expiresAt.IsZero())

	jobID, name, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "3f1c9a2e-7d43-4b1e-9d1a-0c8f6b2a4e51", jobID)
	assert.Equal(t, "trend/trend_platform.pdf", name)
	assert.True(t, expiresAt.Equal(parsedExpiry))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	issued := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Generate("job-1", "file.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token, false)
	assert.True(t, errors.Is(err, ErrTokenExpired))

	jobID, name, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "file.csv", name)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", "file.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	assert.True(t, errors.Is(err, ErrTokenSignature))

	other := NewSignedURLSigner("other", time.Hour)
	_, _, _, err = other.Parse(token, false)
	assert.True(t, errors.Is(err, ErrTokenSignature))

	_, _, _, err = signer.Parse("not-a-token", false)
	assert.True(t, errors.Is(err, ErrTokenMalformed))
}
