package importer

import (
	"errors"
	"fmt"
)

// ReferenceKind names the record class a textual key failed to resolve to.
type ReferenceKind string

const (
	KindUser    ReferenceKind = "User"
	KindVersion ReferenceKind = "Version"
	KindIssue   ReferenceKind = "Issue"
)

// NotFoundError signals a reference that matched nothing. Recoverable: the
// caller decides between skip, fail and fallback.
type NotFoundError struct {
	Kind ReferenceKind
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found for %q", e.Kind, e.Key)
}

// AmbiguousError signals a unique-field value matching more than one issue.
// Always a row failure, never silently recovered.
type AmbiguousError struct {
	Field string
	Value string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("unique field %s with value %q has duplicate record", e.Field, e.Value)
}

// ConfigurationError rejects the whole batch before any row is processed.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// errRowAborted is the internal control signal for "stop processing this
// row, move to the next". The site that raises it has already recorded the
// skip or failure; the batch loop only moves on.
var errRowAborted = errors.New("row aborted")
