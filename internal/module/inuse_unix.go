//go:build unix

package module

import (
	"errors"
	"syscall"
)

func isInUse(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK)
}
