package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingAuthzHeader     = errors.New("missing authorization header")
	ErrUnsupportedAuthzScheme = errors.New("unsupported authorization scheme")
	ErrMissingAuthzToken      = errors.New("missing authorization token")
)

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingAuthzHeader
	}

	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAuthzScheme, scheme)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingAuthzToken
	}

	return token, nil
}
