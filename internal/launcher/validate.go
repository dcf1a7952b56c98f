package launcher

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/woozymasta/omp-launcher/internal/apperr"
)

// Player name limits.
const (
	MinPlayerNameLength = 3
	MaxPlayerNameLength = 24
	MaxHostnameLength   = 253
)

// ValidatePort checks that port is in 1-65535.
func ValidatePort(port int) (uint16, error) {
	if port < 1 || port > 65535 {
		return 0, apperr.Newf(apperr.InvalidInput, "Port %d is out of valid range (1-65535)", port)
	}

	return uint16(port), nil
}

// ValidateHostname returns the trimmed host name or address.
func ValidateHostname(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", apperr.New(apperr.InvalidInput, "Hostname cannot be empty")
	}
	if len(host) > MaxHostnameLength {
		return "", apperr.New(apperr.InvalidInput, "Hostname too long")
	}

	for _, r := range host {
		if !isAlnum(r) && r != '.' && r != '-' && r != '_' {
			return "", apperr.Newf(apperr.InvalidInput, "Invalid character in hostname: '%c'", r)
		}
	}

	return host, nil
}

// ValidatePlayerName returns the trimmed nickname.
func ValidatePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.New(apperr.InvalidInput, "Player name cannot be empty")
	}

	n := utf8.RuneCountInString(name)
	if n > MaxPlayerNameLength {
		return "", apperr.Newf(apperr.InvalidInput, "Player name cannot exceed %d characters", MaxPlayerNameLength)
	}
	if n < MinPlayerNameLength {
		return "", apperr.Newf(apperr.InvalidInput, "Player name must be at least %d characters", MinPlayerNameLength)
	}

	for _, r := range name {
		if !isAlnum(r) && r != '_' && r != '[' && r != ']' {
			return "", apperr.Newf(apperr.InvalidInput, "Invalid character in player name: '%c'", r)
		}
	}

	return name, nil
}

// ValidateFilePath returns the trimmed path after rejecting traversal
// sequences and checking that it exists.
func ValidateFilePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", apperr.New(apperr.InvalidInput, "File path cannot be empty")
	}
	if strings.Contains(path, "..") || strings.Contains(path, "//") {
		return "", apperr.New(apperr.InvalidInput, "Path contains invalid sequences")
	}
	if !fileExists(path) {
		return "", apperr.New(apperr.NotFound, "Path does not exist: "+path)
	}

	return path, nil
}

// ValidateGameDir checks that dir exists and holds the game executable.
func ValidateGameDir(dir string) (string, error) {
	dir, err := ValidateFilePath(dir)
	if err != nil {
		return "", err
	}

	exe := filepath.Join(dir, GameExecutable)
	if !fileExists(exe) {
		return "", apperr.New(apperr.NotFound, "GTA San Andreas executable not found at: "+exe)
	}

	return dir, nil
}

// SanitizePassword drops NUL and control characters and trims whitespace.
func SanitizePassword(password string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, password)

	return strings.TrimSpace(clean)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
