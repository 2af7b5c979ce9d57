package nzb

import "errors"

// ErrNoFiles indicates an NZB without a single downloadable segment
var ErrNoFiles = errors.New("nzb contains no downloadable files")
