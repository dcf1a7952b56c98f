//go:build !windows

package launcher

import (
	"context"

	"github.com/rs/zerolog/log"
)

// NewPlatform returns the launcher for the running platform. The game only
// runs on Windows, so elsewhere launches are accepted and ignored.
func NewPlatform(_ Policy) GameLauncher {
	return Noop{}
}

// Noop is a GameLauncher that does nothing.
type Noop struct{}

// Launch validates req and logs it.
func (Noop) Launch(_ context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	log.Warn().
		Str("server", req.Host).
		Uint16("port", req.Port).
		Msg("Game launch is only supported on Windows, request ignored")

	return nil
}
