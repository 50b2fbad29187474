package core

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation marks a programming error on the caller side:
	// a call made in the wrong state, a mismatched handle, a bad binding.
	ErrContractViolation = errors.New("contract violation")
	// ErrFormatDrift is returned when a rebuilt swapchain no longer uses the
	// colour or depth format the render pass was created for.
	ErrFormatDrift = errors.New("swapchain image or depth format has changed")
	ErrDeviceLost  = errors.New("device lost")
)

// Violation logs and returns an error wrapping ErrContractViolation.
func Violation(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
	LogError(err.Error())
	return err
}

// IsViolation reports whether err is (or wraps) a contract violation.
func IsViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}
