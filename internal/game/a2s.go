// Package game talks to game servers: it queries Source servers over A2S to
// mirror their state, and acts as an SQP client.
package game

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/sqpd/internal/config"
	"github.com/woozymasta/sqpd/internal/sqp"
)

// QueryServer connects to a game server via UDP and requests A2S_INFO.
func QueryServer(ip string, port int, options config.A2S) (*a2s.Info, error) {
	client, err := a2s.New(ip, port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = options.BufferSize
	client.Timeout = options.Timeout

	return client.GetInfo()
}

// InfoFromA2S overlays the live fields of an A2S_INFO reply on base.
// The reported game port always comes from base.
func InfoFromA2S(base sqp.ServerInfo, info *a2s.Info) sqp.ServerInfo {
	out := base
	if info.Name != "" {
		out.ServerName = info.Name
	}
	if info.Map != "" {
		out.Map = info.Map
	}
	if info.Game != "" {
		out.GameType = info.Game
	}
	if info.Version != "" {
		out.BuildID = info.Version
	}
	out.CurrentPlayers = uint16(info.Players)
	out.MaxPlayers = uint16(info.MaxPlayers)

	return out
}

// MirrorA2S polls the upstream A2S server every options.Interval and passes
// the merged server info to publish until ctx is done. Failed polls keep the
// last published value.
func MirrorA2S(ctx context.Context, options config.A2S, base sqp.ServerInfo, publish func(sqp.ServerInfo)) error {
	host, portStr, err := net.SplitHostPort(options.Address)
	if err != nil {
		return fmt.Errorf("invalid A2S address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid A2S port: %w", err)
	}

	logCtx := log.With().Str("upstream", options.Address).Logger()

	refresh := func() {
		start := time.Now()
		info, err := QueryServer(host, port, options)
		if err != nil {
			logCtx.Warn().Err(err).Msg("A2S query failed, keeping previous server info")
			return
		}

		merged := InfoFromA2S(base, info)
		publish(merged)

		logCtx.Debug().
			Str("name", merged.ServerName).
			Str("map", merged.Map).
			Uint16("players", merged.CurrentPlayers).
			Uint16("max_players", merged.MaxPlayers).
			Dur("duration", time.Since(start)).
			Msg("Server info mirrored from A2S")
	}

	ticker := time.NewTicker(options.Interval)
	defer ticker.Stop()

	refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}
