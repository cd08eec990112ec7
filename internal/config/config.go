// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/sqpd/internal/logger"
	"github.com/woozymasta/sqpd/internal/sqp"
	"github.com/woozymasta/sqpd/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server  Server        `group:"Server Options" env-namespace:"SQPD"`
	Info    Info          `group:"Server Info Options" namespace:"info" env-namespace:"SQPD_INFO"`
	Token   Token         `group:"Challenge Token Options" namespace:"token" env-namespace:"SQPD_TOKEN"`
	A2S     A2S           `group:"A2S Mirror Options" namespace:"a2s" env-namespace:"SQPD_A2S"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"SQPD_GEOIP"`
	Metrics Metrics       `group:"Metrics Options" namespace:"metrics" env-namespace:"SQPD_METRICS"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"SQPD_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds the UDP responder configuration.
type Server struct {
	// betteralign:ignore

	Address  string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"SQP UDP listen address" default:"0.0.0.0:9999"`
	Interval time.Duration `short:"i" long:"update-interval" env:"UPDATE_INTERVAL" description:"Interval between socket drains" default:"50ms"`
	SelfTest bool          `long:"self-test" env:"SELF_TEST" description:"Query the responder over loopback after startup"`
}

// Info holds the server metadata reported in ServerInfo responses.
type Info struct {
	// betteralign:ignore

	Name       string `short:"n" long:"name" env:"NAME" description:"Server name" default:"sqpd"`
	GameType   string `long:"game-type" env:"GAME_TYPE" description:"Game type"`
	BuildID    string `long:"build-id" env:"BUILD_ID" description:"Game build identifier"`
	Map        string `short:"m" long:"map" env:"MAP" description:"Current map"`
	Port       uint16 `short:"p" long:"game-port" env:"GAME_PORT" description:"Game port reported to clients"`
	Players    uint16 `long:"players" env:"PLAYERS" description:"Current player count"`
	MaxPlayers uint16 `long:"max-players" env:"MAX_PLAYERS" description:"Maximum player count" default:"16"`
}

// Token holds challenge token configuration.
type Token struct {
	// betteralign:ignore

	TTL           time.Duration `long:"ttl" env:"TTL" description:"Lifetime of an unanswered challenge token, 0 disables expiry" default:"1m"`
	SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" description:"Interval between expired token sweeps" default:"10s"`
}

// A2S holds the optional upstream Source Query server mirrored into ServerInfo.
type A2S struct {
	// betteralign:ignore

	Address    string        `long:"address" env:"ADDRESS" description:"Upstream A2S server (host:port) to mirror, empty disables"`
	Interval   time.Duration `long:"interval" env:"INTERVAL" description:"Upstream poll interval" default:"30s"`
	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Metrics holds Prometheus exporter configuration.
type Metrics struct {
	Address string `long:"address" env:"ADDRESS" description:"HTTP listen address for /metrics, empty disables"`
}

// ServerInfo returns the metadata configured on the command line.
func (c *Config) ServerInfo() sqp.ServerInfo {
	return sqp.ServerInfo{
		ServerName:     c.Info.Name,
		GameType:       c.Info.GameType,
		BuildID:        c.Info.BuildID,
		Map:            c.Info.Map,
		Port:           c.Info.Port,
		CurrentPlayers: c.Info.Players,
		MaxPlayers:     c.Info.MaxPlayers,
	}
}

// Validate reports the first configuration value the service cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Address); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Server.Address, err)
	}
	if c.Server.Interval <= 0 {
		return fmt.Errorf("update interval must be positive, got %s", c.Server.Interval)
	}
	if c.Token.TTL < 0 {
		return fmt.Errorf("token TTL must not be negative, got %s", c.Token.TTL)
	}
	if c.Token.SweepInterval <= 0 {
		return fmt.Errorf("token sweep interval must be positive, got %s", c.Token.SweepInterval)
	}
	if c.A2S.Address != "" {
		if _, _, err := net.SplitHostPort(c.A2S.Address); err != nil {
			return fmt.Errorf("invalid A2S address %q: %w", c.A2S.Address, err)
		}
		if c.A2S.Interval <= 0 {
			return fmt.Errorf("A2S interval must be positive, got %s", c.A2S.Interval)
		}
	}

	return nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
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

// ParseArgs parses args and validates the result without exiting.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.Version {
		return &cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
