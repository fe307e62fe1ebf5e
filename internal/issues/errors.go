package issues

import (
	"errors"
	"fmt"
)

var (
	ErrResultErrored         = errors.New("evaluation result errored")
	ErrResultPassed          = errors.New("evaluation result passed")
	ErrResultAlreadyAssigned = errors.New("evaluation result already assigned to an issue")
	ErrResultNotAssigned     = errors.New("evaluation result not assigned to issue")
	ErrUnsupportedEvaluation = errors.New("evaluation type does not support issues")
	ErrNoReasoning           = errors.New("evaluation result has no reasoning")
	ErrIssueMerged           = errors.New("issue was merged")
	ErrNotEnoughReasons      = errors.New("not enough reasons to generate an issue")
	ErrInvalidCentroid       = errors.New("invalid centroid")

	// ErrIssueAlreadyMerged aborts a merge whose participants changed
	// after candidates were picked. The sweep is safe to retry.
	ErrIssueAlreadyMerged = errors.New("issue already merged")
)

// UnprocessableError marks a business rule rejection. Callers log and drop
// it; it is never retried.
type UnprocessableError struct {
	Err    error
	Detail string
}

func (e *UnprocessableError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *UnprocessableError) Unwrap() error {
	return e.Err
}

func unprocessable(err error, detail string) error {
	return &UnprocessableError{Err: err, Detail: detail}
}

// IsUnprocessable reports whether err is a business rule rejection.
func IsUnprocessable(err error) bool {
	var target *UnprocessableError
	return errors.As(err, &target)
}
