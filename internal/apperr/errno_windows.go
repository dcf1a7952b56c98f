//go:build windows

package apperr

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func privilegeErrno(errno syscall.Errno) bool {
	return errno == windows.ERROR_ACCESS_DENIED || errno == windows.ERROR_ELEVATION_REQUIRED
}
