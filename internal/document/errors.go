package document

import "fmt"

// ConflictError is returned when an optimistic write carries an expected
// version that no longer matches the document. Actual is the version the
// caller should re-fetch against.
type ConflictError struct {
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("expected version %d, but current version is %d", e.Expected, e.Actual)
}
