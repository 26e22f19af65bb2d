package config

// Operational limits for tree traversal and bulk mutation.
const (
	// MaxTreeDepth bounds every descendant/ancestor walk. The tree
	// invariant forbids cycles, but traversal must still terminate on
	// corrupted data; exceeding the bound is a validation failure.
	MaxTreeDepth = 50

	// DefaultBatchSize is the chunk size for bulk batched mutations.
	DefaultBatchSize = 500

	// MaxTitleLength caps entity and shortcut titles.
	MaxTitleLength = 255

	// OptimisticRetries bounds reload-and-retry on concurrent writes
	// before falling back to a direct field update.
	OptimisticRetries = 3
)
