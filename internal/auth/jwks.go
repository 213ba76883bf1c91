package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// JWKSValidator verifies asymmetric tokens against keys published by an
// external identity provider. Keys are cached and refreshed in the background.
type JWKSValidator struct {
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

// NewJWKSValidator fetches the key set once and starts background refresh.
func NewJWKSValidator(ctx context.Context, jwksURL, issuer, audience string, logger *zerolog.Logger) (*JWKSValidator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   5 * time.Minute,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error().Err(err).Str("jwks_url", jwksURL).Msg("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "EdDSA"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWKSValidator{jwks: jwks, parser: jwt.NewParser(opts...)}, nil
}

// Validate parses a token and verifies it with the cached key set.
func (v *JWKSValidator) Validate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity()
}

// Close stops the background refresh goroutine.
func (v *JWKSValidator) Close() {
	v.jwks.EndBackground()
}
