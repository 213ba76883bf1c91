package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject accepts both string and numeric "sub" claims; identity services
// keyed by integer user ids emit the latter.
type Subject string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Subject) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Subject(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("sub must be a string or number: %w", err)
	}
	*s = Subject(num.String())
	return nil
}

// Claims represents the JWT claims the gateway understands.
type Claims struct {
	Sub               Subject `json:"sub,omitempty"`
	Username          string  `json:"username,omitempty"`
	PreferredUsername string  `json:"preferred_username,omitempty"`
	Name              string  `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GetSubject shadows RegisteredClaims.GetSubject so numeric subjects validate.
func (c Claims) GetSubject() (string, error) {
	return string(c.Sub), nil
}

// Identity converts verified claims into an identity.
func (c *Claims) Identity() (Identity, error) {
	if c.Sub == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	name := c.Username
	for _, candidate := range []string{c.PreferredUsername, c.Name, string(c.Sub)} {
		if name != "" {
			break
		}
		name = candidate
	}
	return Identity{SubjectID: string(c.Sub), DisplayName: name}, nil
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// GenerateToken signs an HS256 token for the given subject. The gateway never
// issues credentials in production; this backs the dev token command and tests.
func GenerateToken(cfg *JWTConfig, subject, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:      Subject(subject),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// JWTValidator verifies HS256 tokens signed with a shared secret.
type JWTValidator struct {
	cfg    *JWTConfig
	parser *jwt.Parser
}

// NewJWTValidator builds a validator enforcing issuer and audience when configured.
func NewJWTValidator(cfg *JWTConfig) *JWTValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTValidator{cfg: cfg, parser: jwt.NewParser(opts...)}
}

// Validate parses and validates a JWT token.
func (v *JWTValidator) Validate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	return claims.Identity()
}
