// Package outwriter renders cache and registration state as text, JSON or CSV.
package outwriter

import (
	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
)

// OutWriter provides a unified interface for all output operations.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteCacheStatus prints store-wide status using the configured output format.
func (ow *OutWriter) WriteCacheStatus(status schema.CacheStatus, cfg *contract.Config) error {
	return PrintCacheStatus(status, cfg)
}

// WritePartitions prints one line per partition using the configured output format.
func (ow *OutWriter) WritePartitions(status schema.CacheStatus, cfg *contract.Config) error {
	return PrintPartitions(status.Partitions, cfg)
}

// WriteRegistration prints the versions held by a registration.
func (ow *OutWriter) WriteRegistration(reg schema.RegistrationStatus, cfg *contract.Config) error {
	return PrintRegistration(reg, cfg)
}
