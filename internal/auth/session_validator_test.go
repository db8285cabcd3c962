package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "user@example.com"
)

func signSessionToken(t *testing.T, claims SessionClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestValidator(t *testing.T, clockNow time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func validClaims(clockNow time.Time) SessionClaims {
	return SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
		},
	}
}

func TestSessionValidatorValidateToken(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	session, err := validator.ValidateToken(signSessionToken(t, validClaims(clockNow)))
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if session.UserID != testSessionUserID || session.Email != testSessionUserEmail {
		t.Fatalf("unexpected session: %+v", session)
	}
	if !session.ExpiresAt.Equal(clockNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", session.ExpiresAt)
	}
}

func TestSessionValidatorValidateTokenExpired(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	claims := validClaims(clockNow)
	claims.IssuedAt = jwt.NewNumericDate(clockNow.Add(-2 * time.Hour))
	claims.NotBefore = nil
	claims.ExpiresAt = jwt.NewNumericDate(clockNow.Add(-time.Hour))

	if _, err := validator.ValidateToken(signSessionToken(t, claims)); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestSessionValidatorRejectsForeignAndIncompleteTokens(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	wrongIssuer := validClaims(clockNow)
	wrongIssuer.Issuer = "someone-else"
	if _, err := validator.ValidateToken(signSessionToken(t, wrongIssuer)); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token for foreign issuer, got %v", err)
	}

	noExpiry := validClaims(clockNow)
	noExpiry.ExpiresAt = nil
	if _, err := validator.ValidateToken(signSessionToken(t, noExpiry)); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token without expiry, got %v", err)
	}

	noUser := validClaims(clockNow)
	noUser.UserID = " "
	if _, err := validator.ValidateToken(signSessionToken(t, noUser)); !errors.Is(err, ErrMissingSessionSubject) {
		t.Fatalf("expected subject error without user id, got %v", err)
	}

	mismatchedSubject := validClaims(clockNow)
	mismatchedSubject.Subject = "user-999"
	if _, err := validator.ValidateToken(signSessionToken(t, mismatchedSubject)); !errors.Is(err, ErrMissingSessionSubject) {
		t.Fatalf("expected subject error, got %v", err)
	}

	if _, err := validator.ValidateToken("  "); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	validator := newTestValidator(t, time.Now())

	request := httptest.NewRequest(http.MethodGet, "/api/meetings", http.NoBody)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookieName,
		Value: signSessionToken(t, validClaims(time.Now())),
	})

	session, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if session.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", session.UserID)
	}
}

func TestSessionValidatorValidateRequestPrefersBearerHeader(t *testing.T) {
	validator := newTestValidator(t, time.Now())

	request := httptest.NewRequest(http.MethodGet, "/api/meetings", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+signSessionToken(t, validClaims(time.Now())))
	request.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: "garbage"})

	session, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if session.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", session.UserID)
	}

	basic := httptest.NewRequest(http.MethodGet, "/api/meetings", http.NoBody)
	basic.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, err := validator.ValidateRequest(basic); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token for basic auth, got %v", err)
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/api/meetings", http.NoBody)
	if _, err := validator.ValidateRequest(anonymous); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNewSessionValidatorRequiresSecretAndCookie(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{CookieName: testSessionCookieName}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected signing key error, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("x"), CookieName: " "}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected cookie name error, got %v", err)
	}
}
