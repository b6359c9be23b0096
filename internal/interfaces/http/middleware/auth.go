package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/turtacn/BioDockViz/internal/infrastructure/auth/token"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/response"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

type contextKey int

const (
	claimsContextKey contextKey = iota
	apiKeyInfoContextKey
)

// TokenValidator verifies bearer tokens. *token.HMACVerifier satisfies it.
type TokenValidator interface {
	ValidateToken(raw string) (*token.Claims, error)
}

// APIKeyValidator verifies X-API-Key values. *token.StaticAPIKeys satisfies it.
type APIKeyValidator interface {
	ValidateAPIKey(key string) (*token.APIKeyInfo, error)
}

// AuthConfig configures AuthMiddleware.
type AuthConfig struct {
	// SkipPaths bypass authentication, including their sub-paths.
	SkipPaths []string
}

// AuthMiddleware accepts either a bearer token or an API key. Either
// validator may be nil, in which case that credential kind is rejected.
type AuthMiddleware struct {
	tokens  TokenValidator
	apiKeys APIKeyValidator
	config  AuthConfig
	logger  logging.Logger
}

func NewAuthMiddleware(tokens TokenValidator, apiKeys APIKeyValidator, config AuthConfig, logger logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthMiddleware{
		tokens:  tokens,
		apiKeys: apiKeys,
		config:  config,
		logger:  logger.Named("auth"),
	}
}

// Authenticate rejects requests without valid credentials with 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		log := logging.FromContext(r.Context(), m.logger)

		if raw := extractBearerToken(r); raw != "" {
			if m.tokens == nil {
				response.Error(w, r, errors.New(errors.ErrCodeUnauthorized, "bearer tokens are not accepted"))
				return
			}
			claims, err := m.tokens.ValidateToken(raw)
			if err != nil {
				log.Warn("Token validation failed", logging.String("path", r.URL.Path), logging.Err(err))
				response.Error(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
			if m.apiKeys == nil {
				response.Error(w, r, errors.New(errors.ErrCodeUnauthorized, "API keys are not accepted"))
				return
			}
			info, err := m.apiKeys.ValidateAPIKey(key)
			if err != nil {
				log.Warn("API key validation failed", logging.String("path", r.URL.Path))
				response.Error(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyInfoContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		response.Error(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
	})
}

func (m *AuthMiddleware) shouldSkip(path string) bool {
	for _, skip := range m.config.SkipPaths {
		if path == skip || strings.HasPrefix(path, strings.TrimSuffix(skip, "/")+"/") {
			return true
		}
	}
	return false
}

func extractBearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func ContextGetClaims(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*token.Claims)
	return claims
}

func ContextGetAPIKeyInfo(ctx context.Context) *token.APIKeyInfo {
	info, _ := ctx.Value(apiKeyInfoContextKey).(*token.APIKeyInfo)
	return info
}

// ContextGetSubject names the caller: the token subject or "apikey:<id>".
func ContextGetSubject(ctx context.Context) string {
	if claims := ContextGetClaims(ctx); claims != nil {
		return claims.Subject
	}
	if info := ContextGetAPIKeyInfo(ctx); info != nil {
		return "apikey:" + info.KeyID
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return ContextGetClaims(ctx) != nil || ContextGetAPIKeyInfo(ctx) != nil
}
