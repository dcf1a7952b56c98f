//go:build windows

package apperr

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows"
)

func TestFromOSWindowsPrivilege(t *testing.T) {
	for _, errno := range []error{windows.ERROR_ACCESS_DENIED, windows.ERROR_ELEVATION_REQUIRED} {
		err := FromOS(&os.SyscallError{Syscall: "CreateProcess", Err: errno}, Process, "Failed to spawn process")
		assert.Equal(t, AccessDenied, err.Kind, errno.Error())
	}

	other := FromOS(&os.SyscallError{Syscall: "CreateProcess", Err: windows.ERROR_FILE_NOT_FOUND}, Process, "Failed to spawn process")
	assert.Equal(t, Process, other.Kind)
}
