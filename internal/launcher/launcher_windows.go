//go:build windows

package launcher

// NewPlatform returns the launcher for the running platform.
func NewPlatform(policy Policy) GameLauncher {
	return New(ExecSpawner{}, NewInjector(WindowsAPI{}, policy))
}
