package launcher

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/apperr"
)

// Spawner starts the game process and returns its pid.
type Spawner interface {
	Spawn(req Request) (uint32, error)
}

// ExecSpawner starts the game with os/exec and detaches from it.
type ExecSpawner struct{}

// ExecutablePath resolves the game executable of req to a canonical path.
func ExecutablePath(req Request) (string, error) {
	name := req.Executable
	if name == "" {
		name = GameExecutable
	}

	path := filepath.Join(req.GameDir, name)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperr.Wrap(apperr.Process, "Invalid executable path "+path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", apperr.Wrap(apperr.Process, "Invalid executable path "+path, err)
	}

	return resolved, nil
}

// Spawn starts the game in its own directory and never waits for it.
func (ExecSpawner) Spawn(req Request) (uint32, error) {
	exe, err := ExecutablePath(req)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(exe, BuildArgs(req)...)
	// nil standard streams are connected to the null device
	cmd.Dir = req.GameDir

	if err := cmd.Start(); err != nil {
		log.Debug().Err(err).Str("exe", exe).Msg("Process creation failed")
		return 0, apperr.FromOS(err, apperr.Process, "Failed to spawn process")
	}

	pid := uint32(cmd.Process.Pid)
	if err := cmd.Process.Release(); err != nil {
		log.Debug().Err(err).Uint32("pid", pid).Msg("Failed to release process handle")
	}

	return pid, nil
}

// fileExists reports whether path names an existing file or directory.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
