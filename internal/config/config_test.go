package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/sqpd/internal/sqp"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Address)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.Interval)
	assert.Equal(t, time.Minute, cfg.Token.TTL)
	assert.Equal(t, uint16(16), cfg.Info.MaxPlayers)
	assert.Empty(t, cfg.A2S.Address)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestParseServerInfo(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--info-name", "Test Server",
		"--info-map", "Test Map",
		"--info-game-type", "Test Game Type",
		"--info-build-id", "Test Build 1234",
		"--info-game-port", "1234",
		"--info-players", "6",
		"--info-max-players", "16",
	})
	require.NoError(t, err)

	assert.Equal(t, sqp.ServerInfo{
		ServerName:     "Test Server",
		GameType:       "Test Game Type",
		BuildID:        "Test Build 1234",
		Map:            "Test Map",
		CurrentPlayers: 6,
		MaxPlayers:     16,
		Port:           1234,
	}, cfg.ServerInfo())
}

func TestParseFromEnv(t *testing.T) {
	t.Setenv("SQPD_LISTEN_ADDRESS", "127.0.0.1:27015")
	t.Setenv("SQPD_TOKEN_TTL", "0")
	t.Setenv("SQPD_A2S_ADDRESS", "10.0.0.1:27016")

	cfg, err := ParseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:27015", cfg.Server.Address)
	assert.Zero(t, cfg.Token.TTL)
	assert.Equal(t, "10.0.0.1:27016", cfg.A2S.Address)
}

func TestValidate(t *testing.T) {
	for name, args := range map[string][]string{
		"address without port": {"--address", "localhost"},
		"zero interval":        {"--update-interval", "0s"},
		"negative ttl":         {"--token-ttl=-1s"},
		"bad a2s address":      {"--a2s-address", "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArgs(args)
			assert.Error(t, err)
		})
	}
}

func TestVersionSkipsValidation(t *testing.T) {
	cfg, err := ParseArgs([]string{"--version", "--update-interval", "0s"})
	require.NoError(t, err)
	assert.True(t, cfg.Version)
}
