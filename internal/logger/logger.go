// Package logger initializes and configures the global zerolog instance.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileName is the log file created in the data directory for the "file" output.
const FileName = "omp-launcher.log"

// Config holds configuration options for the application logger.
type Config struct {
	Level  string `long:"level" env:"LEVEL" description:"Log level (trace, debug, info, warn, error)" default:"info" json:"level"`
	Format string `long:"format" env:"FORMAT" description:"Log format (console or json)" default:"console" json:"format"`
	Output string `long:"output" env:"OUTPUT" description:"Log output (stdout, stderr, file or a file path)" default:"stderr" json:"output"`
}

// Setup initializes the global logger. The "file" output writes FileName in
// dataDir. The returned func closes the log file, if any.
func Setup(cfg Config, dataDir string) func() error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writer, closeFn := openOutput(cfg.Output, dataDir)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(writer).With().Timestamp().Logger()
		return closeFn
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        writer,
		TimeFormat: time.RFC3339,
	}
	if f, ok := writer.(*os.File); ok {
		if os.Getenv("NO_COLOR") != "" || !isTerminal(f) {
			consoleWriter.NoColor = true
		}
	}
	log.Logger = log.Output(consoleWriter)

	return closeFn
}

// openOutput resolves the output option to a writer, falling back to stderr
// when the log file cannot be opened.
func openOutput(output, dataDir string) (io.Writer, func() error) {
	noop := func() error { return nil }

	switch output {
	case "stdout":
		return os.Stdout, noop
	case "stderr", "":
		return os.Stderr, noop
	case "file":
		output = filepath.Join(dataDir, FileName)
	}

	if dir := filepath.Dir(output); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		tempLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		tempLogger.Error().Err(err).Str("path", output).Msg("Failed to open log file, falling back to stderr")
		return os.Stderr, noop
	}

	return file, file.Close
}

// isTerminal checks if the provided file descriptor refers to a character device (terminal).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) != 0
}
