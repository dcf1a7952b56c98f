// Package launcher starts the game client and loads the multiplayer client
// libraries into it.
package launcher

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/apperr"
)

// Well known file names inside the game directory and the launcher data dir.
const (
	GameExecutable = "gta_sa.exe"
	SAMPLibrary    = "samp.dll"
	OMPLibrary     = "omp-client.dll"
)

// Request describes one game launch.
type Request struct {
	// Name is the player nickname.
	Name string
	// Host and Port identify the server to join.
	Host string
	// GameDir is the game installation directory; also the working directory.
	GameDir string
	// Executable overrides GameExecutable when set.
	Executable string
	// Password is passed with -z when set.
	Password string
	// Payloads are loaded in order; the first one is the base client library.
	Payloads []string
	Port     uint16
}

// Validate checks the fields a launch cannot do without.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return apperr.New(apperr.InvalidInput, "Player name cannot be empty")
	case strings.TrimSpace(r.Host) == "":
		return apperr.New(apperr.InvalidInput, "Hostname cannot be empty")
	case r.Port == 0:
		return apperr.New(apperr.InvalidInput, "Port 0 is out of valid range (1-65535)")
	case strings.TrimSpace(r.GameDir) == "":
		return apperr.New(apperr.InvalidInput, "Game directory cannot be empty")
	case len(r.Payloads) == 0 || strings.TrimSpace(r.Payloads[0]) == "":
		return apperr.New(apperr.InvalidInput, "Client library path cannot be empty")
	}

	return nil
}

// GameLauncher starts the game for a request.
type GameLauncher interface {
	Launch(ctx context.Context, req Request) error
}

// Launcher spawns the game and injects the payloads, base library first.
type Launcher struct {
	Spawner  Spawner
	Injector *Injector
}

// New creates a launcher from its parts.
func New(spawner Spawner, injector *Injector) *Launcher {
	return &Launcher{Spawner: spawner, Injector: injector}
}

// Launch validates req, spawns the game and loads every payload in order.
// A payload is only attempted after the previous one was loaded.
func (l *Launcher) Launch(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	req.Password = SanitizePassword(req.Password)

	pid, err := l.Spawner.Spawn(req)
	if err != nil {
		return err
	}

	log.Info().
		Uint32("pid", pid).
		Str("server", req.Host).
		Uint16("port", req.Port).
		Msg("Game process started")

	for _, payload := range req.Payloads {
		if strings.TrimSpace(payload) == "" {
			continue
		}
		if err := l.Injector.Inject(ctx, pid, payload); err != nil {
			return err
		}
		log.Info().Uint32("pid", pid).Str("payload", payload).Msg("Client library loaded")
	}

	return nil
}
