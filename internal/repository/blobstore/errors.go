package blobstore

import "errors"

// ErrNotFound is returned when a key has no corresponding blob, which
// should only happen if the owning job row was corrupted or the blob was
// deleted out of band.
var ErrNotFound = errors.New("blobstore: key not found")
