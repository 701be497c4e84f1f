// Package iocache stores cache partitions for the offline cache manager.
package iocache

import (
	"sync"

	"github.com/huangsam/shellcache/internal/contract"
)

// CacheStoreManager holds the process-wide CacheStore.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	store        contract.CacheStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetStore returns the configured CacheStore.
func (mgr *CacheStoreManager) GetStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.store
}
