package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrMissingToken is returned when the request carries no credential.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned when the credential fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the verified principal bound to a connection or request.
type Identity struct {
	SubjectID   string
	DisplayName string
}

// Validator verifies a bearer credential and yields the identity it carries.
type Validator interface {
	Validate(token string) (Identity, error)
}

// CredentialFromRequest extracts the bearer credential from the Authorization
// header or, for browser websocket clients that cannot set headers, the token
// query parameter.
func CredentialFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrInvalidToken
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// Authenticate runs extraction and validation in one step.
func Authenticate(v Validator, r *http.Request) (Identity, error) {
	token, err := CredentialFromRequest(r)
	if err != nil {
		return Identity{}, err
	}
	return v.Validate(token)
}

// Reason is the client-facing rejection text for an authentication error.
func Reason(err error) string {
	if errors.Is(err, ErrMissingToken) {
		return ErrMissingToken.Error()
	}
	return ErrInvalidToken.Error()
}
