package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/auth"
)

func TestSessionSigner_MintAndVerify(t *testing.T) {
	signer := auth.NewSessionSigner("test-token-key", time.Minute)

	token, err := signer.Mint("orchestrator-a", "10.0.0.5")
	require.NoError(t, err)

	claims, err := signer.Verify(token, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "orchestrator-a", claims.OrchestratorName)
	assert.Equal(t, "10.0.0.5", claims.OrchestratorIP)
}

func TestSessionSigner_RejectsIPMismatch(t *testing.T) {
	signer := auth.NewSessionSigner("test-token-key", time.Minute)

	token, err := signer.Mint("orchestrator-a", "10.0.0.5")
	require.NoError(t, err)

	_, err = signer.Verify(token, "10.0.0.6")
	assert.ErrorIs(t, err, auth.ErrTokenIPMismatch)
}

func TestSessionSigner_RejectsExpired(t *testing.T) {
	signer := auth.NewSessionSigner("test-token-key", -time.Second)

	token, err := signer.Mint("orchestrator-a", "10.0.0.5")
	require.NoError(t, err)

	_, err = signer.Verify(token, "10.0.0.5")
	assert.Error(t, err)
}

func TestSessionSigner_RejectsWrongKey(t *testing.T) {
	signer := auth.NewSessionSigner("test-token-key", time.Minute)
	other := auth.NewSessionSigner("other-key", time.Minute)

	token, err := signer.Mint("orchestrator-a", "10.0.0.5")
	require.NoError(t, err)

	_, err = other.Verify(token, "10.0.0.5")
	assert.Error(t, err)
}
