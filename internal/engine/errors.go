package engine

import "errors"

// ErrTrainingInvariant is raised when Train/BuildFromUnsorted is handed
// input that violates the engine's basic contract (unsorted or duplicate
// keys passed to Train, mismatched key/value lengths). Per spec.md §7 this
// is a fatal condition, not a retry signal.
var ErrTrainingInvariant = errors.New("rolex: training invariant violated")

// ErrEmptyEngine is returned by read/write operations issued before any
// Train call has populated the upper index.
var ErrEmptyEngine = errors.New("rolex: engine has no trained submodels")
