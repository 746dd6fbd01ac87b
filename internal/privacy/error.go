package privacy

// scrubbedError reports a scrubbed message but unwraps to the original, so
// errors.Is and errors.As keep working.
type scrubbedError struct {
	err error
	msg string
}

func (e *scrubbedError) Error() string { return e.msg }

func (e *scrubbedError) Unwrap() error { return e.err }

// ScrubError returns err with URLs and credentials removed from its message.
// It returns nil for nil.
func ScrubError(err error) error {
	if err == nil {
		return nil
	}
	return &scrubbedError{err: err, msg: ScrubMessage(err.Error())}
}
