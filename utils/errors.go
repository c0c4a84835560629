package utils

import (
	"errors"
	"fmt"
)

// Error classes. Configuration and storage-fatal errors stop the logger
// before it enters the running state; transient errors are absorbed and
// retried by the caller.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrStorageFatal  = errors.New("storage unavailable")
	ErrTransient     = errors.New("transient failure")
)

// InvalidConfig wraps a configuration problem in ErrInvalidConfig.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// StorageFatal marks err as an unrecoverable storage condition.
func StorageFatal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFatal, err)
}

// Transient marks err as retryable.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// IsFatal reports whether err must halt progression into the running state.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrStorageFatal)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
