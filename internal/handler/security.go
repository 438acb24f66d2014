package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/shopping-cart/internal/domain/auth"
)

// APIKeyHeader carries the caller's API key on protected routes.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key authenticated for this request, if any.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Require returns middleware admitting only requests whose key grants scope.
// A missing or unknown key yields 401, a key lacking the scope 403.
func (s *SecurityHandler) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !info.HasScope(scope) {
				writeMessage(w, http.StatusForbidden, "api key lacks scope "+scope)
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *SecurityHandler) authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}

	hexHash := auth.Hash(s.pepper, key)
	info, err := s.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		return nil, errUnauthorized
	}

	// The stored hash is compared again in constant time in case the
	// repository matched on something other than an exact hash.
	hash, err := hex.DecodeString(hexHash)
	if err != nil {
		return nil, errUnauthorized
	}
	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, errUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return nil, errUnauthorized
	}

	return info, nil
}
