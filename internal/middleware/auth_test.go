package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHS256Validator(t *testing.T) {
	v, err := NewHS256Validator("s3cr3t", "fedcat-issuer", "fedcat")
	require.NoError(t, err)

	valid := jwt.RegisteredClaims{
		Subject:   "analyst",
		Issuer:    "fedcat-issuer",
		Audience:  jwt.ClaimStrings{"fedcat"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	t.Run("valid", func(t *testing.T) {
		claims, err := v.Validate(context.Background(), signHS256(t, "s3cr3t", valid))
		require.NoError(t, err)
		assert.Equal(t, "analyst", claims.Subject)
		assert.Equal(t, []string{"fedcat"}, claims.Audience)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		_, err := v.Validate(context.Background(), signHS256(t, "other", valid))
		require.Error(t, err)
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		c := valid
		c.Issuer = "someone-else"
		_, err := v.Validate(context.Background(), signHS256(t, "s3cr3t", c))
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		c := valid
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := v.Validate(context.Background(), signHS256(t, "s3cr3t", c))
		require.Error(t, err)
	})

	t.Run("no_subject", func(t *testing.T) {
		c := valid
		c.Subject = ""
		_, err := v.Validate(context.Background(), signHS256(t, "s3cr3t", c))
		require.Error(t, err)
	})

	t.Run("empty_secret", func(t *testing.T) {
		_, err := NewHS256Validator("", "", "")
		require.Error(t, err)
	})
}

func TestJWKSValidator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	sign := func(claims jwt.RegisteredClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	v := NewJWKSValidator(context.Background(), srv.URL, "https://idp.example.com", "fedcat")
	claims := jwt.RegisteredClaims{
		Subject:   "svc-athena",
		Issuer:    "https://idp.example.com",
		Audience:  jwt.ClaimStrings{"fedcat"},
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	got, err := v.Validate(context.Background(), sign(claims))
	require.NoError(t, err)
	assert.Equal(t, "svc-athena", got.Subject)

	claims.Audience = jwt.ClaimStrings{"someone-else"}
	_, err = v.Validate(context.Background(), sign(claims))
	require.Error(t, err)
}

func TestAuth(t *testing.T) {
	v, err := NewHS256Validator("s3cr3t", "", "")
	require.NoError(t, err)

	var principal string
	handler := Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing_token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "unauthorized", body["code"])
	})

	t.Run("invalid_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid_token_sets_principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signHS256(t, "s3cr3t", jwt.RegisteredClaims{Subject: "analyst"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "analyst", principal)
	})
}
