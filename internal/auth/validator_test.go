package auth

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
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
}

func signMap(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestJWTValidator_AcceptsGeneratedToken(t *testing.T) {
	req := require.New(t)
	cfg := newTestJWTConfig()

	token, err := GenerateToken(cfg, "u-1", "Alice")
	req.NoError(err)

	id, err := NewJWTValidator(cfg).Validate(token)
	req.NoError(err)
	req.Equal(Identity{SubjectID: "u-1", DisplayName: "Alice"}, id)
}

func TestJWTValidator_Rejections(t *testing.T) {
	cfg := newTestJWTConfig()
	v := NewJWTValidator(cfg)

	wrongSecret, err := GenerateToken(&JWTConfig{Secret: []byte("other"), Issuer: "test", Audience: "test", TTL: time.Hour}, "u-1", "Alice")
	require.NoError(t, err)

	expired, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: "test", Audience: "test", TTL: -time.Minute}, "u-1", "Alice")
	require.NoError(t, err)

	wrongIssuer, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: "someone-else", Audience: "test", TTL: time.Hour}, "u-1", "Alice")
	require.NoError(t, err)

	wrongAudience, err := GenerateToken(&JWTConfig{Secret: cfg.Secret, Issuer: "test", Audience: "mobile", TTL: time.Hour}, "u-1", "Alice")
	require.NoError(t, err)

	noSubject := signMap(t, cfg.Secret, jwt.MapClaims{
		"iss": "test", "aud": "test", "exp": time.Now().Add(time.Hour).Unix(), "username": "ghost",
	})

	noExpiry := signMap(t, cfg.Secret, jwt.MapClaims{
		"sub": "u-1", "iss": "test", "aud": "test", "username": "Alice",
	})

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u-1", "iss": "test", "aud": "test",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "wrong secret", token: wrongSecret, want: ErrInvalidToken},
		{name: "expired", token: expired, want: ErrInvalidToken},
		{name: "wrong issuer", token: wrongIssuer, want: ErrInvalidToken},
		{name: "wrong audience", token: wrongAudience, want: ErrInvalidToken},
		{name: "no subject", token: noSubject, want: ErrInvalidToken},
		{name: "no expiry", token: noExpiry, want: ErrInvalidToken},
		{name: "alg none", token: unsigned, want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTValidator_NumericSubjectAndNameFallbacks(t *testing.T) {
	req := require.New(t)
	secret := []byte("s3cret")
	v := NewJWTValidator(&JWTConfig{Secret: secret})

	numeric := signMap(t, secret, jwt.MapClaims{"sub": 42, "username": "bob", "exp": time.Now().Add(time.Hour).Unix()})
	id, err := v.Validate(numeric)
	req.NoError(err)
	req.Equal(Identity{SubjectID: "42", DisplayName: "bob"}, id)

	preferred := signMap(t, secret, jwt.MapClaims{"sub": "kc-7", "preferred_username": "carol", "exp": time.Now().Add(time.Hour).Unix()})
	id, err = v.Validate(preferred)
	req.NoError(err)
	req.Equal("carol", id.DisplayName)

	bare := signMap(t, secret, jwt.MapClaims{"sub": "dave-id", "exp": time.Now().Add(time.Hour).Unix()})
	id, err = v.Validate(bare)
	req.NoError(err)
	req.Equal("dave-id", id.DisplayName)
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr error
	}{
		{name: "bearer header", header: "Bearer abc.def", want: "abc.def"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "query token", query: "?token=xyz", want: "xyz"},
		{name: "header wins over query", header: "Bearer h", query: "?token=q", want: "h"},
		{name: "nothing", wantErr: ErrMissingToken},
		{name: "empty bearer", header: "Bearer ", wantErr: ErrMissingToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrInvalidToken},
		{name: "no scheme", header: "abc", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := CredentialFromRequest(r)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReason(t *testing.T) {
	require.Equal(t, "missing token", Reason(ErrMissingToken))
	require.Equal(t, "invalid token", Reason(ErrInvalidToken))
	require.Equal(t, "invalid token", Reason(context.DeadlineExceeded))
}

func TestJWKSValidator(t *testing.T) {
	req := require.New(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	req.NoError(err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.Nop()
	v, err := NewJWKSValidator(ctx, srv.URL, "https://idp.example.com/realms/chat", "", &logger)
	req.NoError(err)
	defer v.Close()

	sign := func(claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "test-key"
		s, signErr := tok.SignedString(key)
		req.NoError(signErr)
		return s
	}

	good := sign(jwt.MapClaims{
		"sub":                "kc-1",
		"preferred_username": "alice",
		"iss":                "https://idp.example.com/realms/chat",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	id, err := v.Validate(good)
	req.NoError(err)
	req.Equal(Identity{SubjectID: "kc-1", DisplayName: "alice"}, id)

	noExp := sign(jwt.MapClaims{"sub": "kc-1", "iss": "https://idp.example.com/realms/chat"})
	_, err = v.Validate(noExp)
	req.ErrorIs(err, ErrInvalidToken)

	hs := signMap(t, []byte("shared"), jwt.MapClaims{"sub": "kc-1", "exp": time.Now().Add(time.Hour).Unix()})
	_, err = v.Validate(hs)
	req.ErrorIs(err, ErrInvalidToken)

	_, err = v.Validate("")
	req.ErrorIs(err, ErrMissingToken)
}
