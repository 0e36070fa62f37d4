package modelarena

import "errors"

// ErrTooManyModels is returned by Encode when the trained submodel count
// would overflow the fixed-size model_keys/model_offsets arrays reserved in
// UpperReserved bytes.
var ErrTooManyModels = errors.New("rolex: too many submodels for reserved upper index region")

// ErrDecode wraps any malformed-input condition hit while parsing a model
// arena byte buffer. Per spec.md §7 this is a fatal, non-recoverable
// condition — a corrupt upper index cannot be partially trusted.
var ErrDecode = errors.New("rolex: model arena decode error")
