//go:build windows

package launcher

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	processAccess = windows.PROCESS_CREATE_THREAD |
		windows.PROCESS_QUERY_INFORMATION |
		windows.PROCESS_VM_OPERATION |
		windows.PROCESS_VM_WRITE |
		windows.PROCESS_VM_READ

	moduleBufferSize = 1024
	loadTimeoutMs    = 10000
)

var (
	kernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = kernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = kernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = kernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = kernel32.NewProc("GetExitCodeThread")
	procLoadLibraryW       = kernel32.NewProc("LoadLibraryW")
)

// WindowsAPI opens processes through the Win32 API.
type WindowsAPI struct{}

// Open opens pid with the rights needed to load a library into it.
func (WindowsAPI) Open(pid uint32) (Process, error) {
	h, err := windows.OpenProcess(processAccess, false, pid)
	if err != nil {
		return nil, err
	}

	// LoadLibraryW is resolved in our own address space; it only matches the
	// target when both processes have the same bitness.
	var targetWow64, selfWow64 bool
	if err := windows.IsWow64Process(h, &targetWow64); err == nil {
		_ = windows.IsWow64Process(windows.CurrentProcess(), &selfWow64)
		if unsafe.Sizeof(uintptr(0)) == 8 && targetWow64 && !selfWow64 {
			_ = windows.CloseHandle(h)
			return nil, errors.New("32-bit game process requires a 32-bit launcher build")
		}
	}

	return &winProcess{handle: h, pid: pid}, nil
}

type winProcess struct {
	handle windows.Handle
	pid    uint32
}

// Inject writes path into the target and runs LoadLibraryW on it in a remote thread.
func (p *winProcess) Inject(path string) error {
	if err := procLoadLibraryW.Find(); err != nil {
		return fmt.Errorf("resolve LoadLibraryW: %w", err)
	}

	wide, err := windows.UTF16FromString(path)
	if err != nil {
		return fmt.Errorf("encode library path: %w", err)
	}
	size := uintptr(len(wide) * 2)

	remote, _, callErr := procVirtualAllocEx.Call(
		uintptr(p.handle), 0, size,
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE,
	)
	if remote == 0 {
		return fmt.Errorf("VirtualAllocEx: %w", callErr)
	}
	defer procVirtualFreeEx.Call(uintptr(p.handle), remote, 0, windows.MEM_RELEASE) //nolint:errcheck

	var written uintptr
	if err := windows.WriteProcessMemory(p.handle, remote, (*byte)(unsafe.Pointer(&wide[0])), size, &written); err != nil {
		return fmt.Errorf("WriteProcessMemory: %w", err)
	}

	thread, _, callErr := procCreateRemoteThread.Call(uintptr(p.handle), 0, 0, procLoadLibraryW.Addr(), remote, 0, 0)
	if thread == 0 {
		return fmt.Errorf("CreateRemoteThread: %w", callErr)
	}
	defer windows.CloseHandle(windows.Handle(thread)) //nolint:errcheck

	event, err := windows.WaitForSingleObject(windows.Handle(thread), loadTimeoutMs)
	if err != nil {
		return fmt.Errorf("WaitForSingleObject: %w", err)
	}
	if event != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("LoadLibraryW did not finish in %d ms", loadTimeoutMs)
	}

	var module uint32
	if ok, _, callErr := procGetExitCodeThread.Call(thread, uintptr(unsafe.Pointer(&module))); ok == 0 {
		return fmt.Errorf("GetExitCodeThread: %w", callErr)
	}
	if module == 0 {
		return errors.New("LoadLibraryW returned NULL")
	}

	return nil
}

// Modules returns the full paths of the modules loaded in the process.
func (p *winProcess) Modules() ([]string, error) {
	var (
		handles [moduleBufferSize]windows.Handle
		needed  uint32
	)
	cb := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
	if err := windows.EnumProcessModulesEx(p.handle, &handles[0], cb, &needed, windows.LIST_MODULES_ALL); err != nil {
		return nil, fmt.Errorf("EnumProcessModulesEx: %w", err)
	}

	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	count = min(count, len(handles))

	modules := make([]string, 0, count)
	var name [windows.MAX_PATH]uint16
	for _, m := range handles[:count] {
		if err := windows.GetModuleFileNameEx(p.handle, m, &name[0], uint32(len(name))); err != nil {
			continue
		}
		modules = append(modules, windows.UTF16ToString(name[:]))
	}

	return modules, nil
}

func (p *winProcess) Close() error {
	return windows.CloseHandle(p.handle)
}
