// Package storage defines the persistence interfaces for the indexing
// pipeline: a durable job queue (JobStore) and a vector index (VectorStore),
// together with the binary serialization helpers shared by backends.
//
// The two stores are the only mutable shared state in the system. All
// mutations go through the narrow operation sets declared here; no component
// touches a backend's underlying representation directly.
package storage
