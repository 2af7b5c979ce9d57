package nntp

import (
	"errors"
	"fmt"
)

var (
	ErrConnect = errors.New("nntp connect failed")
	ErrAuth    = errors.New("nntp authentication failed")
	ErrFetch   = errors.New("nntp fetch failed")

	// ErrArticleNotFound indicates a 430 response
	ErrArticleNotFound = errors.New("article not found (430)")

	// ErrConnectionLost means the session is unusable and must be redialed
	ErrConnectionLost = errors.New("nntp connection lost")
)

// StatusError is a reply whose status code did not indicate success.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server replied %d %s", e.Code, e.Msg)
}

func (e *StatusError) Unwrap() error {
	if e.Code == 430 {
		return ErrArticleNotFound
	}
	return nil
}
