//go:build windows

package module

import (
	"errors"
	"syscall"
)

// ERROR_SHARING_VIOLATION and ERROR_LOCK_VIOLATION.
const (
	errSharingViolation syscall.Errno = 32
	errLockViolation    syscall.Errno = 33
)

func isInUse(err error) bool {
	return errors.Is(err, errSharingViolation) || errors.Is(err, errLockViolation)
}
