package domain

import "errors"

// ErrDirectory indicates the release destination could not be prepared
var ErrDirectory = errors.New("destination directory unavailable")

// ErrWrite indicates decoded or assembled bytes could not be persisted
var ErrWrite = errors.New("write failed")
