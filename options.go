package codegraph

import (
	"github.com/erichchampion/codegraph/blobstore"
	"github.com/erichchampion/codegraph/codec"
	"github.com/erichchampion/codegraph/indexer"
	"github.com/erichchampion/codegraph/partition"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	codec            codec.Codec
	store            blobstore.Store
	compression      partition.Compression
	partitionOpts    partition.Options
	indexConfig      indexer.Config
	onIndexError     func(*indexer.MaintenanceError)
}

// Option configures Engine constructor behavior.
type Option func(*options)

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures operational metrics collection.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metricsCollector = collector
	}
}

// WithCodec configures the codec used for partition blobs and manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithBlobStore configures where evicted partitions and manifests are
// persisted. If nil is passed, an in-process memory store is used.
func WithBlobStore(store blobstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCompression configures partition blob compression.
func WithCompression(comp partition.Compression) Option {
	return func(o *options) {
		o.compression = comp
	}
}

// WithPartitionOptions replaces the full partition manager configuration.
// Zero fields keep their defaults.
func WithPartitionOptions(opts partition.Options) Option {
	return func(o *options) {
		o.partitionOpts = opts
	}
}

// WithMemoryBudget sets the loaded-partition memory budget in bytes.
func WithMemoryBudget(bytes int64) Option {
	return func(o *options) {
		o.partitionOpts.MaxMemoryUsage = bytes
	}
}

// WithEvictionPolicy selects the eviction scoring policy.
func WithEvictionPolicy(policy partition.EvictionPolicy) Option {
	return func(o *options) {
		o.partitionOpts.EvictionPolicy = policy
	}
}

// WithMemoryPressureThreshold sets the usage fraction above which a
// partition load triggers eviction first. Must be in (0, 1].
func WithMemoryPressureThreshold(threshold float64) Option {
	return func(o *options) {
		o.partitionOpts.MemoryPressureThreshold = threshold
	}
}

// WithPartitionLimits bounds individual partitions: node count (drives
// size and dependency-cluster chunking), internal edge count, and
// estimated size. Zero keeps the respective default.
func WithPartitionLimits(maxNodes, maxEdges int, maxMemory int64) Option {
	return func(o *options) {
		o.partitionOpts.MaxNodesPerPartition = maxNodes
		o.partitionOpts.MaxEdgesPerPartition = maxEdges
		o.partitionOpts.MaxMemoryPerPartition = maxMemory
	}
}

// WithPartitioningCriteria sets the partitioning criteria bundle.
func WithPartitioningCriteria(criteria partition.Criteria) Option {
	return func(o *options) {
		o.partitionOpts.Criteria = criteria
	}
}

// WithResidentFraction sets the assumed resident fraction used in the
// memory-reduction estimate. Must be in (0, 1].
func WithResidentFraction(fraction float64) Option {
	return func(o *options) {
		o.partitionOpts.ResidentFraction = fraction
	}
}

// WithIndexes declares the named indexes the engine maintains.
func WithIndexes(cfg indexer.Config) Option {
	return func(o *options) {
		o.indexConfig = cfg
	}
}

// WithOnIndexError installs a callback invoked for every failed or
// skipped per-index update.
func WithOnIndexError(fn func(*indexer.MaintenanceError)) Option {
	return func(o *options) {
		o.onIndexError = fn
	}
}
