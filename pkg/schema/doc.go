// Package schema holds the raw, per-version view of a protobuf schema.
//
// A VersionSchema is extracted from a compiled FileDescriptorSet and is the
// input to the merge engine (pkg/merge) and the diff engine (pkg/diff). Once
// built, a VersionSchema is never mutated; both engines consume it read-only,
// so the same instance can be shared across concurrent merges and diffs.
package schema
