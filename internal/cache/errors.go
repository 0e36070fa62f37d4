package cache

import "errors"

// ErrNotLoaded is returned by Search when the cache has no mirrored
// submodels (it was not built by Load). Scan has no error result and
// returns no pairs in that case.
var ErrNotLoaded = errors.New("rolex: learned cache has no loaded submodels")
