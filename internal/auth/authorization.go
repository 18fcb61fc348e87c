package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/crypto"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
)

// Header names carrying the three HMAC authorization fields, per spec.md
// §4.4.
const (
	HeaderTime  = "authorization-time"
	HeaderNonce = "authorization-nonce"
	HeaderHMAC  = "authorization-hmac"
)

// devBypassHMAC is the literal HMAC value accepted when dev bypass is
// enabled, matching the original implementation's "xdev" escape hatch.
const devBypassHMAC = "xdev"

var (
	// ErrRequestExpired means the request's authorization-time is outside
	// the configured validity window.
	ErrRequestExpired = errors.New("request outside authorization validity window")
	// ErrNonceReplayed means the request's nonce has already been consumed.
	ErrNonceReplayed = errors.New("authorization nonce already used")
	// ErrBadHMAC means none of the candidate keys produced a matching HMAC.
	ErrBadHMAC = errors.New("authorization hmac mismatch")
)

// RequestSignature is every field of an incoming request the HMAC digest is
// computed over, extracted by the caller (the Echo middleware in
// internal/api) before verification.
type RequestSignature struct {
	Method          string
	Path            string
	CanonicalQuery  string
	Body            []byte
	Time            string
	Nonce           string
	HMAC            string
}

// Verifier checks per-request HMAC authorization against a set of
// candidate secret keys, with replay protection backed by NonceDAO.
type Verifier struct {
	nonces          *dao.NonceDAO
	requestValidity time.Duration
	allowDevBypass  bool
}

// NewVerifier returns a Verifier backed by nonces, rejecting requests whose
// authorization-time drifts beyond requestValidity. allowDevBypass gates
// the "xdev" literal HMAC escape hatch (spec.md §4.4), and must never be
// enabled in production config.
func NewVerifier(nonces *dao.NonceDAO, requestValidity time.Duration, allowDevBypass bool) *Verifier {
	return &Verifier{nonces: nonces, requestValidity: requestValidity, allowDevBypass: allowDevBypass}
}

// Verify checks sig against candidateKeys in order (e.g. a test's key_ro
// then the root key), returning nil if any candidate key's HMAC matches.
// Verification proceeds in the fixed order the spec mandates: time window,
// then nonce replay, then HMAC — cheap checks first, so a request that
// fails early never touches the nonce table or the database transaction it
// would otherwise consume. A blank candidate key is treated as absent (not
// as the empty-string secret) so a caller can pass an unset key_ro/key_rw
// without it silently widening the match; use VerifyAnySession for
// endpoints whose tier genuinely signs with no per-endpoint secret.
func (v *Verifier) Verify(ctx context.Context, sig RequestSignature, candidateKeys ...string) error {
	return v.verify(ctx, sig, candidateKeys, false)
}

// VerifyAnySession checks sig against the empty-string secret, matching
// spec.md §6's "any session" auth tier (POST /multi-results/init,
// GET /system/config): any orchestrator with a valid session may call
// these, signing with no endpoint-specific key at all.
func (v *Verifier) VerifyAnySession(ctx context.Context, sig RequestSignature) error {
	return v.verify(ctx, sig, []string{""}, true)
}

func (v *Verifier) verify(ctx context.Context, sig RequestSignature, candidateKeys []string, allowBlankKey bool) error {
	if v.allowDevBypass && sig.HMAC == devBypassHMAC {
		return nil
	}

	if err := v.verifyTime(sig.Time); err != nil {
		return err
	}

	if err := v.nonces.Record(ctx, sig.Nonce); err != nil {
		if errors.Is(err, dao.ErrNonceReused) {
			return ErrNonceReplayed
		}
		return fmt.Errorf("auth: recording nonce: %w", err)
	}

	canonicalBody, err := crypto.CanonicalJSON(sig.Body)
	if err != nil {
		return fmt.Errorf("auth: canonicalizing body: %w", err)
	}

	for _, key := range candidateKeys {
		if key == "" && !allowBlankKey {
			continue
		}
		expected := computeHMAC(sig.Method, sig.Path, sig.CanonicalQuery, canonicalBody, sig.Time, sig.Nonce, key)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(sig.HMAC)) == 1 {
			return nil
		}
	}
	return ErrBadHMAC
}

func (v *Verifier) verifyTime(clientTime string) error {
	var unixSeconds int64
	if _, err := fmt.Sscanf(clientTime, "%d", &unixSeconds); err != nil {
		return fmt.Errorf("%w: unparseable authorization-time %q", ErrRequestExpired, clientTime)
	}
	drift := time.Since(time.Unix(unixSeconds, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.requestValidity {
		return ErrRequestExpired
	}
	return nil
}

// computeHMAC reproduces the original's single-SHA-256 "message digest"
// scheme: method||path||canonical_query||canonical_body||time||nonce||secret,
// hashed once with crypto.Hash. Not a keyed HMAC in the cryptographic
// sense — named to match the wire header and the original's naming, kept
// faithful to spec.md §4.4's literal digest formula.
func computeHMAC(method, path, canonicalQuery, canonicalBody, clientTime, nonce, secret string) string {
	message := method + path + canonicalQuery + canonicalBody + clientTime + nonce + secret
	return crypto.Hash(message)
}
