package compiler

import "errors"

var (
	ErrUnsupportedQuery  = errors.New("unsupported query type")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrCompilationFailed = errors.New("query compilation failed")
	// ErrNoRelatedQuery is returned for a related query index the compiled
	// query does not have
	ErrNoRelatedQuery = errors.New("no such related query")
)
