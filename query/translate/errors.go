package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrTranslationFailed is wrapped by every TranslationError
	ErrTranslationFailed = errors.New("query translation failed")

	// ErrAmbiguousTypeMapping is returned when one parameter is inferred with
	// two incompatible store types
	ErrAmbiguousTypeMapping = errors.New("ambiguous type mapping")
)

// TranslationError names the construct that could not be translated
type TranslationError struct {
	Construct string
	Reason    string
	Err       error
}

func (e *TranslationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot translate %s", e.Construct)
	}
	return fmt.Sprintf("cannot translate %s: %s", e.Construct, e.Reason)
}

func (e *TranslationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTranslationFailed, e.Err}
	}
	return []error{ErrTranslationFailed}
}

func failf(construct, format string, args ...any) error {
	return &TranslationError{Construct: construct, Reason: fmt.Sprintf(format, args...)}
}
