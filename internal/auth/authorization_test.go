package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/auth"
	"github.com/rysavy-ondrej/project-inventor/internal/crypto"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/testutil"
)

func newVerifier(t *testing.T, allowDevBypass bool) *auth.Verifier {
	db := testutil.SetupTestDatabase(t)
	nonces := dao.NewNonceDAO(db)
	return auth.NewVerifier(nonces, time.Minute, allowDevBypass)
}

// signedRequest builds a RequestSignature whose HMAC field reproduces what
// a correctly behaving orchestrator would send for secret.
func signedRequest(method, path, query string, body []byte, nonce, secret string) auth.RequestSignature {
	clientTime := fmt.Sprintf("%d", time.Now().Unix())
	canonicalBody, _ := crypto.CanonicalJSON(body)
	message := method + path + query + canonicalBody + clientTime + nonce + secret
	return auth.RequestSignature{
		Method:         method,
		Path:           path,
		CanonicalQuery: query,
		Body:           body,
		Time:           clientTime,
		Nonce:          nonce,
		HMAC:           crypto.Hash(message),
	}
}

func TestVerifier_AcceptsValidHMAC(t *testing.T) {
	v := newVerifier(t, false)
	sig := signedRequest("GET", "/test/1", "", nil, "nonce-a", "ro-secret")

	err := v.Verify(context.Background(), sig, "ro-secret", "root-secret")
	assert.NoError(t, err)
}

func TestVerifier_FallsBackToRootKey(t *testing.T) {
	v := newVerifier(t, false)
	sig := signedRequest("GET", "/test/1", "", nil, "nonce-b", "root-secret")

	err := v.Verify(context.Background(), sig, "ro-secret", "root-secret")
	assert.NoError(t, err)
}

func TestVerifier_RejectsBadHMAC(t *testing.T) {
	v := newVerifier(t, false)
	sig := signedRequest("GET", "/test/1", "", nil, "nonce-c", "wrong-secret")

	err := v.Verify(context.Background(), sig, "ro-secret", "root-secret")
	assert.ErrorIs(t, err, auth.ErrBadHMAC)
}

func TestVerifier_RejectsNonceReplay(t *testing.T) {
	v := newVerifier(t, false)
	sig := signedRequest("GET", "/test/1", "", nil, "nonce-d", "ro-secret")

	require.NoError(t, v.Verify(context.Background(), sig, "ro-secret"))
	err := v.Verify(context.Background(), sig, "ro-secret")
	assert.ErrorIs(t, err, auth.ErrNonceReplayed)
}

func TestVerifier_RejectsExpiredTime(t *testing.T) {
	v := newVerifier(t, false)
	staleTime := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())
	message := "GET" + "/test/1" + "" + "" + staleTime + "nonce-stale" + "ro-secret"
	sig := auth.RequestSignature{
		Method: "GET", Path: "/test/1", Time: staleTime, Nonce: "nonce-stale",
		HMAC: crypto.Hash(message),
	}

	err := v.Verify(context.Background(), sig, "ro-secret")
	assert.ErrorIs(t, err, auth.ErrRequestExpired)
}

func TestVerifier_DevBypass(t *testing.T) {
	v := newVerifier(t, true)
	sig := auth.RequestSignature{
		Method: "GET", Path: "/test/1", Time: fmt.Sprintf("%d", time.Now().Unix()),
		Nonce: "nonce-e", HMAC: "xdev",
	}

	err := v.Verify(context.Background(), sig, "ro-secret")
	assert.NoError(t, err)
}

func TestVerifier_DevBypassDisabledByDefault(t *testing.T) {
	v := newVerifier(t, false)
	sig := auth.RequestSignature{
		Method: "GET", Path: "/test/1", Time: fmt.Sprintf("%d", time.Now().Unix()),
		Nonce: "nonce-f", HMAC: "xdev",
	}

	err := v.Verify(context.Background(), sig, "ro-secret")
	assert.Error(t, err)
}
