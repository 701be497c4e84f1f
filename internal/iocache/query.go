package iocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
)

// MatchAny looks key up in every partition in creation order and returns
// the first hit with the partition that held it.
func MatchAny(ctx context.Context, store contract.CacheStore, key string) (string, *schema.CachedResponse, error) {
	names, err := store.Partitions(ctx)
	if err != nil {
		return "", nil, err
	}
	for _, name := range names {
		resp, err := store.Match(ctx, name, key)
		if err != nil {
			return "", nil, fmt.Errorf("matching in %s: %w", name, err)
		}
		if resp != nil {
			return name, resp, nil
		}
	}
	return "", nil, nil
}

// DeleteAll removes every partition and reports how many were deleted.
func DeleteAll(ctx context.Context, store contract.CacheStore) (int, error) {
	names, err := store.Partitions(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	deleted := 0
	for _, name := range names {
		ok, err := store.DeletePartition(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", name, err))
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, errors.Join(errs...)
}
