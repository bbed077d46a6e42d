package submission

import (
	"errors"
	"fmt"
)

var (
	ErrContentRejected = errors.New("content rejected")
	ErrDuplicate       = errors.New("duplicate report")
)

// RejectionError is returned when moderation rejects a submission.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return ErrContentRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrContentRejected, e.Reason)
}

func (e *RejectionError) Unwrap() error { return ErrContentRejected }

// DuplicateError is returned when an unresolved report already covers the
// submitted location. ExistingReportID lets the citizen upvote it instead.
type DuplicateError struct {
	ExistingReportID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: report %d already covers this location", ErrDuplicate, e.ExistingReportID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }
