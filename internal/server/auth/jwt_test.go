package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var testAccount = AccountClaims{ID: "8f1f4b8e-3c1d-4d7a-9a55-2a4f3f0f9d11", Username: "alice", Email: "alice@example.com"}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner([]byte("super-secret"), "chirp", "chirp-clients")
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}
	return s
}

func TestNewSigner_EmptySecret(t *testing.T) {
	if _, err := NewSigner(nil, "i", "a"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	tok, exp, err := s.Issue(testAccount, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if exp.Location() != time.UTC {
		t.Fatalf("expiresAt should be UTC, got %v", exp.Location())
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Fatalf("unexpected expiry distance %v", d)
	}

	claims, err := s.Verify(tok, VerifyOptions{CheckExpiry: true})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Subject != testAccount.ID || claims.Name != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Issuer != "chirp" || len(claims.Audience) != 1 || claims.Audience[0] != "chirp-clients" {
		t.Fatalf("iss/aud mismatch: %+v", claims.RegisteredClaims)
	}
	if claims.IssuedAt == nil {
		t.Fatal("iat missing")
	}
}

func TestVerify_Expiry(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	issued := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return issued })
	tok, _, err := s.Issue(testAccount, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	s.SetClock(func() time.Time { return issued.Add(16 * time.Minute) })

	if _, err := s.Verify(tok, VerifyOptions{CheckExpiry: true}); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(common.ErrTokenExpired, common.ErrInvalidToken) {
		t.Fatal("ErrTokenExpired must wrap ErrInvalidToken")
	}

	claims, err := s.Verify(tok, VerifyOptions{CheckExpiry: false})
	if err != nil {
		t.Fatalf("expired token must verify when expiry is skipped: %v", err)
	}
	if claims.Subject != testAccount.ID {
		t.Fatalf("subject mismatch: %q", claims.Subject)
	}
}

func TestVerify_Tampered(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	tok, _, err := s.Issue(testAccount, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tok)
	}

	forged, _, err := mustSigner(t, "other-secret", "chirp", "chirp-clients").Issue(
		AccountClaims{ID: "00000000-0000-0000-0000-000000000001", Username: "mallory"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	swappedPayload := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	flipped := []byte(parts[2])
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}
	badSig := parts[0] + "." + parts[1] + "." + string(flipped)

	for name, bad := range map[string]string{
		"payload swapped": swappedPayload,
		"signature byte":  badSig,
		"wrong secret":    forged,
		"garbage":         "not.a.jwt",
		"empty":           "",
	} {
		if _, err := s.Verify(bad, VerifyOptions{}); !errors.Is(err, common.ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   testAccount.ID,
		Issuer:    "chirp",
		Audience:  jwt.ClaimStrings{"chirp-clients"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("super-secret"))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	if _, err := s.Verify(hs512, VerifyOptions{}); !errors.Is(err, common.ErrInvalidSignature) {
		t.Fatalf("HS512: expected ErrInvalidSignature, got %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := s.Verify(none, VerifyOptions{}); !errors.Is(err, common.ErrInvalidSignature) {
		t.Fatalf("none: expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_IssuerAndAudience(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	wrongIss, _, err := mustSigner(t, "super-secret", "someone-else", "chirp-clients").Issue(testAccount, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Verify(wrongIss, VerifyOptions{}); !errors.Is(err, common.ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got %v", err)
	}

	wrongAud, _, err := mustSigner(t, "super-secret", "chirp", "admin-console").Issue(testAccount, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Verify(wrongAud, VerifyOptions{}); !errors.Is(err, common.ErrInvalidAudience) {
		t.Fatalf("expected ErrInvalidAudience, got %v", err)
	}
}

func mustSigner(t *testing.T, secret, iss, aud string) *Signer {
	t.Helper()
	s, err := NewSigner([]byte(secret), iss, aud)
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}
	return s
}
