// Package config handles the parsing and validation of application configuration
// from command-line arguments, environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/woozymasta/omp-launcher/internal/logger"
	"github.com/woozymasta/omp-launcher/internal/vars"
)

// DataDirName is the launcher directory inside the user config directory.
const DataDirName = "mp.open.launcher"

// Default file names inside the data directory.
const (
	DatabaseFile  = "launcher.db"
	GeoIPFile     = "GeoLite2-Country.mmdb"
	LegacyStorage = "storage.json"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"OMP"`
	Query     Query         `group:"Query Options" namespace:"query" env-namespace:"OMP_QUERY"`
	Launcher  Launcher      `group:"Launcher Options" namespace:"launcher" env-namespace:"OMP_LAUNCHER"`
	Launch    Launch        `group:"Direct Launch Options"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"OMP_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"OMP_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"OMP_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"OMP_LOG"`

	DataDir string `long:"data-dir" env:"OMP_DATA_DIR" description:"Launcher data directory (default: <user config dir>/mp.open.launcher)"`
	EnvFile string `long:"env-file" description:"Load environment variables from this file before parsing" default:".env"`
	Version bool   `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds the local RPC server configuration.
type Server struct {
	// betteralign:ignore

	Address        string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"RPC listen address" default:"127.0.0.1:46290"`
	AllowedOrigins []string      `long:"allowed-origin" env:"ALLOWED_ORIGINS" description:"Origins allowed to call the RPC from a browser context" default:"tauri://localhost" default:"http://tauri.localhost" default:"http://localhost:1420" env-delim:","`
	MaxBodySize    int64         `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"65536"`
	LaunchQueue    int           `long:"launch-queue" env:"LAUNCH_QUEUE" description:"Pending launch requests before new ones are refused" default:"4"`
	HistoryWorkers int           `long:"history-workers" env:"HISTORY_WORKERS" description:"Workers recording the server history" default:"2"`
	HistoryRefresh time.Duration `long:"history-refresh" env:"HISTORY_REFRESH" description:"Skip history writes for a server seen within this duration" default:"1m"`
}

// Query holds the SA-MP query client configuration.
type Query struct {
	// betteralign:ignore

	Timeout           time.Duration `long:"timeout" env:"TIMEOUT" description:"Receive timeout per request" default:"2s"`
	RateLimit         time.Duration `long:"rate-limit" env:"RATE_LIMIT" description:"Minimum interval between queries to one server" default:"500ms"`
	ExtraInfoCooldown time.Duration `long:"extra-info-cooldown" env:"EXTRA_INFO_COOLDOWN" description:"Minimum interval between extra info queries to one server" default:"3s"`
	BufferSize        int           `long:"buffer-size" env:"BUFFER_SIZE" description:"Receive buffer size" default:"1500"`
}

// Launcher holds the game launch and injection configuration.
type Launcher struct {
	// betteralign:ignore

	OMPLibrary    string        `long:"omp-library" env:"OMP_LIBRARY" description:"Path to omp-client.dll (default: <data dir>/omp/omp-client.dll)"`
	MaxRetries    int           `long:"max-retries" env:"MAX_RETRIES" description:"Injection attempts per cycle" default:"5"`
	RetryDelay    time.Duration `long:"retry-delay" env:"RETRY_DELAY" description:"Delay between injection attempts" default:"500ms"`
	Marker        string        `long:"marker" env:"MARKER" description:"Module that signals the game is ready for injection" default:"vorbis"`
	MarkerTimeout time.Duration `long:"marker-timeout" env:"MARKER_TIMEOUT" description:"Give up waiting for the marker module after this duration (0 waits forever)" default:"0"`
}

// Launch holds the direct launch arguments. When host, port, name and game path
// are all set the launcher starts the game and exits instead of serving RPC.
type Launch struct {
	// betteralign:ignore

	Host     string `long:"host" description:"Server IP or hostname"`
	Port     int    `short:"p" long:"port" description:"Server port"`
	Name     string `short:"n" long:"name" description:"Nickname"`
	GamePath string `short:"g" long:"gamepath" description:"Game path with the game executable and samp.dll"`
	Password string `short:"P" long:"password" description:"Server password"`
	NoOMP    bool   `long:"no-omp" description:"Disable omp-client injection"`
}

// Storage holds database configuration and maintenance tasks.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database (default: <data dir>/launcher.db)"`
	ImportLegacy  string        `long:"import-legacy" env:"IMPORT_LEGACY" description:"Import a legacy storage.json key-value file on start" optional:"true" optional-value:"auto"`
	PruneStale    time.Duration `long:"prune-stale" description:"Delete history entries not seen within this duration and exit"`
	CheckStale    time.Duration `long:"check-stale" description:"Re-check history entries not seen within this duration. Update if UP, delete if DOWN"`
	CheckAll      bool          `long:"check-all" description:"Re-check ALL history entries. Update if UP, delete if DOWN"`
	Workers       int           `long:"workers" env:"WORKERS" description:"Workers used by maintenance re-checks" default:"10"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
	FakeResponder string        `long:"fake-responder" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `long:"path" env:"PATH" description:"Path to MMDB file (default: <data dir>/GeoLite2-Country.mmdb)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"168h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Disable country detection"`
}

// RateLimit holds RPC rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard client limit: requests count" default:"600"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard client limit: window duration" default:"1m"`
}

// HasDirectLaunch reports whether all direct launch arguments are present.
func (c *Config) HasDirectLaunch() bool {
	return c.Launch.Host != "" && c.Launch.Port != 0 && c.Launch.Name != "" && c.Launch.GamePath != ""
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	loadEnvFile(os.Args[1:])

	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args into a Config and fills the data directory defaults.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash|flags.PrintErrors)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve data directory: %w", err)
		}
		c.DataDir = filepath.Join(base, DataDirName)
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, DatabaseFile)
	}
	if c.Storage.ImportLegacy == "auto" {
		c.Storage.ImportLegacy = filepath.Join(c.DataDir, LegacyStorage)
	}
	if c.GeoIP.Path == "" {
		c.GeoIP.Path = filepath.Join(c.DataDir, GeoIPFile)
	}
	if c.Launcher.OMPLibrary == "" {
		c.Launcher.OMPLibrary = filepath.Join(c.DataDir, "omp", "omp-client.dll")
	}

	return nil
}

// loadEnvFile loads the --env-file value (or .env) into the process environment
// without overriding variables that are already set.
func loadEnvFile(args []string) {
	path := ".env"
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, "--env-file="); ok {
			path = v
		} else if a == "--env-file" && i+1 < len(args) {
			path = args[i+1]
		}
	}

	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}
