package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the identity taken from a verified bearer token.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// HS256Validator verifies tokens signed with a shared secret.
type HS256Validator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewHS256Validator creates a validator for HS256 tokens. Issuer and
// audience are checked when non-empty.
func NewHS256Validator(secret, issuer, audience string) (*HS256Validator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret), issuer: issuer, audience: audience}, nil
}

// Validate verifies the signature and registered claims of token.
func (v *HS256Validator) Validate(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &Claims{Subject: claims.Subject, Issuer: claims.Issuer, Audience: claims.Audience}, nil
}

// JWKSValidator verifies asymmetric tokens against an identity provider's
// published key set.
type JWKSValidator struct {
	verifier *oidc.IDTokenVerifier
}

// NewJWKSValidator creates a validator backed by the key set at jwksURL.
// Keys are fetched lazily and cached. The audience check is skipped when
// audience is empty.
func NewJWKSValidator(ctx context.Context, jwksURL, issuer, audience string) *JWKSValidator {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	return &JWKSValidator{verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})}
}

// Validate verifies token against the key set.
func (v *JWKSValidator) Validate(ctx context.Context, token string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if idToken.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &Claims{Subject: idToken.Subject, Issuer: idToken.Issuer, Audience: idToken.Audience}, nil
}

type principalKey struct{}

// WithPrincipal stores the authenticated subject in the context.
func WithPrincipal(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, principalKey{}, subject)
}

// PrincipalFromContext returns the authenticated subject, if any.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(principalKey{}).(string)
	return sub, ok
}

// Auth rejects requests without a valid bearer token with 401 and stores
// the token subject as the request principal.
func Auth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := v.Validate(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Subject)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "unauthorized",
		"message": msg,
	})
}
