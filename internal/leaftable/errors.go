package leaftable

import "errors"

// ErrSynonymExhausted is returned when a split needs a new synonym entry but
// all SynMax entries of the table (shared by every slot of one submodel,
// index 0 reserved) have already been handed out. Per
// spec.md §7 this is a non-fatal signal: the caller should trigger a
// retraining pass.
var ErrSynonymExhausted = errors.New("rolex: synonym table exhausted")

// ErrDuplicate mirrors spec.md's insert contract: inserting a key already
// present is a no-op reported as an error, not silently swallowed.
var ErrDuplicate = errors.New("rolex: duplicate key")

// ErrNotFound is returned by Update/Remove when the key is absent.
var ErrNotFound = errors.New("rolex: key not found")
