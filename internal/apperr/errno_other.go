//go:build !windows

package apperr

import "syscall"

func privilegeErrno(errno syscall.Errno) bool {
	return errno == syscall.EACCES || errno == syscall.EPERM
}
