package executor

import "errors"

var (
	// ErrConcurrentUse is returned when a second operation starts on a
	// connection while another is still running on it
	ErrConcurrentUse = errors.New("a second operation was started on this connection before a previous operation completed")

	// ErrEnumeratorClosed is returned when a closed enumerator is read
	ErrEnumeratorClosed = errors.New("enumerator is closed")

	ErrNoElements         = errors.New("sequence contains no elements")
	ErrMoreThanOneElement = errors.New("sequence contains more than one element")

	ErrUnknownDriver = errors.New("unknown database driver")
)
