package middlewares

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"blockwatch/internal/utils"

	"github.com/go-crypt/crypt"
	"github.com/go-crypt/crypt/algorithm"
	"github.com/go-crypt/crypt/algorithm/argon2"
)

const apiTokenPrefix = "bw_"

var ErrInvalidAPIToken = errors.New("invalid api token")

// TokenVerifier checks bearer tokens against a single argon2id digest.
// Tokens that verified once are remembered by their sha256 so the hash is
// not recomputed on every request.
type TokenVerifier struct {
	digest string

	mu       sync.Mutex
	verified map[[sha256.Size]byte]struct{}
}

const maxVerifiedTokens = 16

func NewTokenVerifier(digest string) (*TokenVerifier, error) {
	if _, err := decodeDigest(digest); err != nil {
		return nil, fmt.Errorf("invalid api token digest: %w", err)
	}
	return &TokenVerifier{
		digest:   digest,
		verified: make(map[[sha256.Size]byte]struct{}),
	}, nil
}

func (v *TokenVerifier) Verify(token string) error {
	sum := sha256.Sum256([]byte(token))

	v.mu.Lock()
	_, ok := v.verified[sum]
	v.mu.Unlock()
	if ok {
		return nil
	}

	valid, err := VerifyAPIToken(token, v.digest)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if !valid {
		return ErrInvalidAPIToken
	}

	v.mu.Lock()
	if len(v.verified) >= maxVerifiedTokens {
		clear(v.verified)
	}
	v.verified[sum] = struct{}{}
	v.mu.Unlock()

	return nil
}

// RequireToken rejects requests without a valid bearer token. A nil verifier
// leaves the API open.
func RequireToken(verifier *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appCtx := GetAppContext(r)
			if appCtx == nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			token, err := utils.ExtractBearerToken(r)
			if err != nil {
				appCtx.Logger.Debug("rejected request without bearer token", "path", r.URL.Path, "error", err)
				appCtx.SetJSONError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
				return
			}

			if err := verifier.Verify(token); err != nil {
				appCtx.Logger.Warn("rejected request with invalid bearer token", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				appCtx.SetJSONError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GenerateAPIToken returns a new random token and its argon2id digest.
func GenerateAPIToken() (rawToken, digest string, err error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}

	rawToken = apiTokenPrefix + base64.RawURLEncoding.EncodeToString(secretBytes)

	digest, err = HashAPIToken(rawToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash token: %w", err)
	}

	return rawToken, digest, nil
}

func HashAPIToken(token string) (string, error) {
	hasher, err := argon2.New(
		argon2.WithProfileRFC9106LowMemory(),
	)

	if err != nil {
		return "", fmt.Errorf("failed to create argon2 hasher: %v", err)
	}

	digest, err := hasher.Hash(token)
	if err != nil {
		return "", err
	}

	return digest.Encode(), nil
}

func VerifyAPIToken(token, hash string) (bool, error) {
	digest, err := decodeDigest(hash)
	if err != nil {
		return false, err
	}

	return digest.MatchAdvanced(token)
}

func decodeDigest(hash string) (algorithm.Digest, error) {
	decoder := crypt.NewDecoder()
	if err := argon2.RegisterDecoderArgon2id(decoder); err != nil {
		return nil, fmt.Errorf("failed to register argon2 decoder: %v", err)
	}

	return decoder.Decode(hash)
}
