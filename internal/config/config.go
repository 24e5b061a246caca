// Package config handles command line parsing and validation.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// Version is the application version.
const Version = "0.1.0"

const (
	defaultPort           = 8080
	defaultHost           = "localhost"
	defaultDataDir        = "data"
	defaultMaxUploadMB    = 16
	defaultPreviewMax     = 600
	defaultReapInterval   = time.Hour
	defaultReapMaxAge     = time.Hour
	defaultSessionTimeout = 24 * time.Hour
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

var (
	// ErrShowHelp indicates the user requested help.
	ErrShowHelp = errors.New("help requested")

	// ErrShowVersion indicates the user requested version info.
	ErrShowVersion = errors.New("version requested")

	ErrInvalidPort           = errors.New("port must be between 1024 and 65535")
	ErrInvalidHost           = errors.New("host must not be empty")
	ErrInvalidDataDir        = errors.New("data-dir must not be empty")
	ErrInvalidMaxUpload      = errors.New("max-upload-mb must be between 1 and 128")
	ErrInvalidPreviewMax     = errors.New("preview-max must be between 64 and 4096")
	ErrInvalidReapInterval   = errors.New("reap-interval must be at least 1 minute")
	ErrInvalidReapMaxAge     = errors.New("reap-max-age must be at least 1 minute")
	ErrInvalidSessionTimeout = errors.New("session-timeout must be at least 1 minute")
	ErrInvalidLogLevel       = errors.New("log-level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat      = errors.New("log-format must be one of: json, text")
)

// Config holds all runtime configuration.
type Config struct {
	Port           int
	Host           string
	DataDir        string
	MaxUploadMB    int
	PreviewMax     int
	ReapInterval   time.Duration
	ReapMaxAge     time.Duration
	SessionTimeout time.Duration
	LogLevel       string
	LogFormat      string
}

// Addr returns the address the HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Parse parses command line arguments and returns the configuration.
// Returns ErrShowHelp or ErrShowVersion if the user requested those;
// help and version text is written to output.
func Parse(args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("imagelab", flag.ContinueOnError)
	fs.SetOutput(output)

	cfg := &Config{}
	var showHelp, showVersion bool

	fs.IntVar(&cfg.Port, "port", defaultPort, "HTTP listen port")
	fs.StringVar(&cfg.Host, "host", defaultHost, "HTTP listen host")
	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "root directory for stored images")
	fs.IntVar(&cfg.MaxUploadMB, "max-upload-mb", defaultMaxUploadMB, "maximum upload size in megabytes")
	fs.IntVar(&cfg.PreviewMax, "preview-max", defaultPreviewMax, "longest edge of generated previews in pixels")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", defaultReapInterval, "how often stale image files are collected")
	fs.DurationVar(&cfg.ReapMaxAge, "reap-max-age", defaultReapMaxAge, "age after which an unreferenced image file is stale")
	fs.DurationVar(&cfg.SessionTimeout, "session-timeout", defaultSessionTimeout, "idle time before an editing session expires")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log format (json, text)")
	fs.BoolVar(&showHelp, "help", false, "show help")
	fs.BoolVar(&showVersion, "version", false, "show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if showHelp {
		printHelp(output)
		return nil, ErrShowHelp
	}
	if showVersion {
		printVersion(output)
		return nil, ErrShowVersion
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all configuration values are usable.
func (c *Config) validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Host == "" {
		return ErrInvalidHost
	}
	if c.DataDir == "" {
		return ErrInvalidDataDir
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 128 {
		return ErrInvalidMaxUpload
	}
	if c.PreviewMax < 64 || c.PreviewMax > 4096 {
		return ErrInvalidPreviewMax
	}
	if c.ReapInterval < time.Minute {
		return ErrInvalidReapInterval
	}
	if c.ReapMaxAge < time.Minute {
		return ErrInvalidReapMaxAge
	}
	if c.SessionTimeout < time.Minute {
		return ErrInvalidSessionTimeout
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// printHelp writes usage information.
func printHelp(w io.Writer) {
	fmt.Fprintf(w, `imagelab - web based image editor with undo history

USAGE:
    imagelab [FLAGS]

FLAGS:
    --port <PORT>             HTTP listen port (default: %d)
    --host <HOST>             HTTP listen host (default: %s)
    --data-dir <DIR>          root directory for stored images (default: %s)
    --max-upload-mb <MB>      maximum upload size in megabytes (default: %d)
    --preview-max <PX>        longest edge of generated previews (default: %d)
    --reap-interval <DUR>     how often stale image files are collected (default: %s)
    --reap-max-age <DUR>      age after which an unreferenced file is stale (default: %s)
    --session-timeout <DUR>   idle time before an editing session expires (default: %s)
    --log-level <LEVEL>       log level: debug, info, warn, error (default: %s)
    --log-format <FORMAT>     log format: json, text (default: %s)
    --help                    show this help message
    --version                 show version information

EXAMPLES:
    imagelab
    imagelab --port 3000 --data-dir /var/lib/imagelab
    imagelab --log-level debug --log-format text

REQUIREMENTS:
    OpenCV must be installed for image processing.
`,
		defaultPort, defaultHost, defaultDataDir, defaultMaxUploadMB, defaultPreviewMax,
		defaultReapInterval, defaultReapMaxAge, defaultSessionTimeout,
		defaultLogLevel, defaultLogFormat)
}

// printVersion writes version information.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "imagelab %s\n", Version)
}
