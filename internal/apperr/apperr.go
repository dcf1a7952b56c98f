// Package apperr defines the error taxonomy shared by the query client and the game launcher.
package apperr

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Kind classifies an error by how the caller is expected to react to it.
type Kind uint8

const (
	// Internal is an unexpected failure inside the launcher itself.
	Internal Kind = iota
	// Network covers socket, DNS and timeout failures.
	Network
	// Parse is a malformed or truncated protocol field.
	Parse
	// InvalidInput is a cap violation or a bad argument.
	InvalidInput
	// NotFound is an unresolvable address or a missing file.
	NotFound
	// Process is a spawn or process access failure not related to privileges.
	Process
	// Injection is a payload injection failure after the retry policy is exhausted.
	Injection
	// AccessDenied means the operation requires elevated privileges.
	AccessDenied
)

// NeedAdmin is the message the UI receives for AccessDenied failures.
const NeedAdmin = "need_admin"

var kindNames = [...]string{
	Internal:     "Internal error",
	Network:      "Network error",
	Parse:        "Parse error",
	InvalidInput: "Invalid input",
	NotFound:     "Not found",
	Process:      "Process error",
	Injection:    "Injection error",
	AccessDenied: "Access denied - administrator privileges required",
}

// String returns the human readable prefix used in error messages.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is a classified launcher error.
type Error struct {
	Err  error
	Msg  string
	Kind Kind
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so that errors.Is(err, apperr.New(apperr.Network, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Internal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// FromOS classifies an operating system error. Privilege related failures become
// AccessDenied, everything else becomes fallback.
func FromOS(err error, fallback Kind, msg string) *Error {
	if isPrivilegeError(err) {
		return Wrap(AccessDenied, msg, err)
	}

	return Wrap(fallback, msg, err)
}

func isPrivilegeError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) && privilegeErrno(errno) {
		return true
	}

	return errors.Is(err, os.ErrPermission)
}

// UserMessage returns the string surfaced to the UI. AccessDenied collapses to
// NeedAdmin so the UI can offer an elevated relaunch.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsKind(err, AccessDenied) {
		return NeedAdmin
	}

	return err.Error()
}
