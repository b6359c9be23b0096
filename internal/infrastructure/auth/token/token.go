// Package token verifies API credentials: HS256 bearer tokens and static API
// keys configured under auth.*.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	stdliberrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const defaultTokenTTL = time.Hour

var (
	ErrTokenExpired          = errors.New(errors.ErrCodeUnauthorized, "token expired")
	ErrTokenInvalidSignature = errors.New(errors.ErrCodeUnauthorized, "invalid token signature")
	ErrTokenInvalidIssuer    = errors.New(errors.ErrCodeUnauthorized, "invalid token issuer")
	ErrTokenMalformed        = errors.New(errors.ErrCodeUnauthorized, "malformed token")
	ErrInvalidAPIKey         = errors.New(errors.ErrCodeUnauthorized, "invalid API key")
	ErrNoSecret              = errors.New(errors.ErrCodeInternal, "token secret is not configured")
)

// Claims is the verified identity carried by a bearer token.
type Claims struct {
	Subject   string    `json:"sub"`
	Issuer    string    `json:"iss,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// HasScope reports whether the token grants scope. Tokens without scopes
// grant everything.
func (c *Claims) HasScope(scope string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// APIKeyInfo identifies a configured API key without exposing it.
type APIKeyInfo struct {
	KeyID string `json:"key_id"`
}

type jwtClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HMACVerifier signs and verifies HS256 tokens with a shared secret.
type HMACVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewHMACVerifier creates a verifier from auth config.
func NewHMACVerifier(cfg config.AuthConfig) (*HMACVerifier, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNoSecret
	}
	if cfg.Algorithm != "" && cfg.Algorithm != jwt.SigningMethodHS256.Alg() {
		return nil, errors.Newf(errors.ErrCodeValidation, "unsupported token algorithm %q", cfg.Algorithm)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &HMACVerifier{
		secret: []byte(cfg.SecretKey),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for subject valid for the configured TTL.
func (v *HMACVerifier) Issue(subject string, scopes ...string) (string, error) {
	now := v.now()
	claims := jwtClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and, when configured, issuer.
func (v *HMACVerifier) ValidateToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case stdliberrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case stdliberrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalidSignature
		case stdliberrors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrTokenInvalidIssuer
		case stdliberrors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		}
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
	}

	jc, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	claims := &Claims{Subject: jc.Subject, Issuer: jc.Issuer, Scopes: jc.Scopes}
	if jc.IssuedAt != nil {
		claims.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		claims.ExpiresAt = jc.ExpiresAt.Time
	}
	return claims, nil
}

// StaticAPIKeys validates keys against a fixed list. Keys are compared as
// SHA-256 digests in constant time.
type StaticAPIKeys struct {
	digests [][sha256.Size]byte
}

// NewStaticAPIKeys ignores blank entries.
func NewStaticAPIKeys(keys []string) *StaticAPIKeys {
	s := &StaticAPIKeys{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s.digests = append(s.digests, sha256.Sum256([]byte(k)))
	}
	return s
}

// Len returns the number of configured keys.
func (s *StaticAPIKeys) Len() int { return len(s.digests) }

// ValidateAPIKey returns the key id (a digest prefix) of a known key.
func (s *StaticAPIKeys) ValidateAPIKey(key string) (*APIKeyInfo, error) {
	sum := sha256.Sum256([]byte(key))
	found := -1
	for i := range s.digests {
		if subtle.ConstantTimeCompare(sum[:], s.digests[i][:]) == 1 {
			found = i
		}
	}
	if found < 0 {
		return nil, ErrInvalidAPIKey
	}
	return &APIKeyInfo{KeyID: hex.EncodeToString(sum[:4])}, nil
}
