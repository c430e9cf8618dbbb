package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorConflict signals a rejected state transition: acting on an already
// resolved issue, a wrong action for the issue type, or finalizing a job
// that still has open issues. Always a no-op for the caller's state.
var ErrorConflict = errors.New("conflict")

// FatalIngestError aborts a whole job (unparseable file, missing email
// header, empty file). The worker acks the message instead of retrying.
type FatalIngestError struct {
	Reason string
}

func (e *FatalIngestError) Error() string {
	return e.Reason
}

func NewFatalIngestError(reason string) error {
	return &FatalIngestError{Reason: reason}
}

func IsFatalIngestError(err error) bool {
	var fatal *FatalIngestError
	return errors.As(err, &fatal)
}
