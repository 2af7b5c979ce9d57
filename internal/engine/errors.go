package engine

import "errors"

// ErrReleaseAborted means the failure threshold tripped and assembly was skipped
var ErrReleaseAborted = errors.New("release aborted: too many failed segments")

// ErrNoSessions means not a single worker could connect and authenticate
var ErrNoSessions = errors.New("no usable server connection")
