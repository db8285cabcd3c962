package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionIssuer = "tauth"
	bearerScheme         = "bearer"
)

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
)

// SessionClaims is the JWT payload carried by session tokens.
type SessionClaims struct {
	UserID          string `json:"user_id"`
	UserEmail       string `json:"user_email,omitempty"`
	UserDisplayName string `json:"user_display_name,omitempty"`
	jwt.RegisteredClaims
}

// validateSubject requires user_id and sub to name the same caller.
func (c SessionClaims) validateSubject() error {
	userID := strings.TrimSpace(c.UserID)
	return validation.ValidateStruct(&c,
		validation.Field(&c.UserID, validation.By(func(any) error {
			switch {
			case userID == "":
				return validation.ErrRequired
			case strings.TrimSpace(c.Subject) != userID:
				return errors.New("must match sub")
			}
			return nil
		})),
	)
}

// Session is the authenticated caller carried by a valid token.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
	ExpiresAt   time.Time
}

// SessionValidatorConfig describes how to validate session JWTs.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator accepts HS256 session tokens presented as a bearer header or a cookie.
type SessionValidator struct {
	keyFunc    jwt.Keyfunc
	parser     *jwt.Parser
	cookieName string
}

// NewSessionValidator constructs a validator. A blank issuer falls back to "tauth".
func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	secret := append([]byte(nil), cfg.SigningSecret...)
	return &SessionValidator{
		keyFunc: func(*jwt.Token) (any, error) { return secret, nil },
		parser: jwt.NewParser(
			jwt.WithTimeFunc(clock),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		),
		cookieName: cookieName,
	}, nil
}

// CookieName returns the cookie consulted when no Authorization header is present.
func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken verifies a raw JWT and returns the session it describes.
func (v *SessionValidator) ValidateToken(raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrMissingSessionToken
	}

	var claims SessionClaims
	if _, err := v.parser.ParseWithClaims(raw, &claims, v.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredSessionToken
		}
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if err := claims.validateSubject(); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMissingSessionSubject, err)
	}

	session := Session{
		UserID:      strings.TrimSpace(claims.UserID),
		Email:       claims.UserEmail,
		DisplayName: claims.UserDisplayName,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// ValidateRequest validates the token presented by r.
func (v *SessionValidator) ValidateRequest(r *http.Request) (Session, error) {
	raw, err := v.presentedToken(r)
	if err != nil {
		return Session{}, err
	}
	return v.ValidateToken(raw)
}

// presentedToken prefers the Authorization header and only then reads the cookie.
// A non-bearer Authorization scheme is rejected rather than ignored.
func (v *SessionValidator) presentedToken(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingSessionToken
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, bearerScheme) {
			return "", fmt.Errorf("%w: unsupported authorization scheme", ErrInvalidSessionToken)
		}
		return token, nil
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil {
		return "", ErrMissingSessionToken
	}
	return cookie.Value, nil
}
