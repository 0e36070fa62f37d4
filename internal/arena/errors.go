package arena

import "errors"

// ErrLeafArenaFull is returned by FetchNewLeaf when the arena's preallocated
// capacity is exhausted. Per spec.md §7, this is fatal to the insert that
// triggered it and is the retraining signal the caller's policy reacts to.
var ErrLeafArenaFull = errors.New("rolex: leaf arena full")
