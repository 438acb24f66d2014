package memory

import (
	"context"
	"sync"

	"github.com/xenking/shopping-cart/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository keeps API keys in memory, indexed by hash.
type APIKeyRepository struct {
	mu     sync.RWMutex
	byHash map[string]auth.APIKeyInfo
}

// NewAPIKeyRepository returns an empty APIKeyRepository.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{byHash: make(map[string]auth.APIKeyInfo)}
}

// FindByHash returns auth.ErrUnknownKey when no key has the given hash.
func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrUnknownKey
	}
	return &info, nil
}

// Upsert stores info, replacing any key with the same id.
func (r *APIKeyRepository) Upsert(_ context.Context, info auth.APIKeyInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, existing := range r.byHash {
		if existing.ID == info.ID {
			delete(r.byHash, hash)
		}
	}
	r.byHash[info.KeyHash] = info
	return nil
}
