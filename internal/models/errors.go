package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrExecutableUnavailable = errors.New("executable unavailable")
	ErrWorkerCrashed         = errors.New("worker crashed")
	ErrPersistence           = errors.New("persistence error")
)

// classified keeps the caller-facing message while matching a sentinel.
type classified struct {
	kind error
	msg  string
	err  error
}

func (e *classified) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *classified) Is(target error) bool { return target == e.kind }

func (e *classified) Unwrap() error { return e.err }

func Validationf(format string, args ...any) error {
	return &classified{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &classified{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func ExecutableUnavailable(path string, err error) error {
	return &classified{
		kind: ErrExecutableUnavailable,
		msg:  "Executable not found or not executable: " + path,
		err:  err,
	}
}

func Persistence(what string, err error) error {
	return &classified{kind: ErrPersistence, msg: "persist " + what, err: err}
}

func WorkerCrashed(cameraID, code int) error {
	return &classified{kind: ErrWorkerCrashed, msg: fmt.Sprintf("camera %d worker exited with code %d", cameraID, code)}
}

// Message is the caller-facing text of err, without the wrapped cause for
// executable errors.
func Message(err error) string {
	var c *classified
	if errors.As(err, &c) && c.kind == ErrExecutableUnavailable {
		return c.msg
	}
	return err.Error()
}
