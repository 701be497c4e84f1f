package schema

import "time"

// CacheStatus represents the status of the cache store.
type CacheStatus struct {
	Backend         string            `json:"backend"`
	Connected       bool              `json:"connected"`
	TotalPartitions int               `json:"total_partitions"`
	TotalEntries    int               `json:"total_entries"`
	TotalBytes      int64             `json:"total_bytes"`
	LastEntryTime   time.Time         `json:"last_entry_time"`
	OldestEntryTime time.Time         `json:"oldest_entry_time"`
	Partitions      []PartitionStatus `json:"partitions"`
}

// PartitionStatus summarizes a single named partition.
type PartitionStatus struct {
	Name      string        `json:"name"`
	Kind      PartitionKind `json:"kind"`
	Version   string        `json:"version"`
	Entries   int           `json:"entries"`
	Bytes     int64         `json:"bytes"`
	CreatedAt time.Time     `json:"created_at"`
}

// WorkerStatus describes one manager version held by a registration.
type WorkerStatus struct {
	Version string      `json:"version"`
	State   WorkerState `json:"state"`
}

// RegistrationStatus is a point-in-time view of a registration.
type RegistrationStatus struct {
	Active     *WorkerStatus  `json:"active,omitempty"`
	Waiting    *WorkerStatus  `json:"waiting,omitempty"`
	Installing *WorkerStatus  `json:"installing,omitempty"`
	Retired    []WorkerStatus `json:"retired"`
}

// EntryRecord is a stored entry flattened for export.
type EntryRecord struct {
	Partition string
	Response  *CachedResponse
}

// Classify fills in kind and version of every partition for the given app name.
func (s *CacheStatus) Classify(app string) {
	for i := range s.Partitions {
		s.Partitions[i].Kind, s.Partitions[i].Version = ClassifyPartition(app, s.Partitions[i].Name)
	}
}

// ServerStatus is what a running server reports on its status endpoint.
type ServerStatus struct {
	Registration RegistrationStatus `json:"registration"`
	Store        CacheStatus        `json:"store"`
}
