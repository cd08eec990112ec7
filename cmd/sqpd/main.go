// main is the entry point of the sqpd service.
// It binds the SQP socket, keeps the reported server info current and drives
// the responder until interrupted.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sqpd/internal/config"
	"github.com/woozymasta/sqpd/internal/game"
	"github.com/woozymasta/sqpd/internal/geoip"
	"github.com/woozymasta/sqpd/internal/logger"
	"github.com/woozymasta/sqpd/internal/metrics"
	"github.com/woozymasta/sqpd/internal/responder"
	"github.com/woozymasta/sqpd/internal/token"
	"github.com/woozymasta/sqpd/internal/transport"
	"github.com/woozymasta/sqpd/internal/vars"
)

func main() {
	cfg := config.Parse()

	closeLog := logger.Setup(cfg.Logger)
	defer func() { _ = closeLog() }()
	log.Info().Str("version", vars.Version).Msg("Starting sqpd service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.BuildInfo.WithLabelValues(vars.Version, vars.CommitShort()).Set(1)

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, reg); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	opts := []responder.Option{
		responder.WithMetrics(m),
		responder.WithTokens(token.New(token.WithTTL(cfg.Token.TTL))),
		responder.WithSweepInterval(cfg.Token.SweepInterval),
	}

	// GeoIP is optional, only used to annotate logs
	if cfg.GeoIP.Path != "" {
		if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		} else {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			opts = append(opts, responder.WithLocator(geoProvider))
		}
	}

	// Socket
	udp, err := transport.ListenUDP(ctx, cfg.Server.Address)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bind SQP socket")
	}

	srv := responder.New(udp, cfg.ServerInfo(), opts...)
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing SQP socket")
		}
	}()
	log.Info().Str("address", udp.LocalAddr().String()).Msg("SQP server listening")

	// Upstream mirror
	if cfg.A2S.Address != "" {
		go func() {
			if err := game.MirrorA2S(ctx, cfg.A2S, cfg.ServerInfo(), srv.SetServerInfo); err != nil {
				log.Error().Err(err).Msg("A2S mirror stopped")
			}
		}()
	}

	if cfg.Server.SelfTest {
		go selfTest(ctx, udp.LocalAddr())
	}

	if err := srv.Serve(ctx, cfg.Server.Interval); err != nil {
		log.Error().Err(err).Msg("SQP server failed")
		return
	}

	log.Info().Msg("SQP server exited")
}

// selfTest queries the responder through loopback and logs the result.
func selfTest(ctx context.Context, local net.Addr) {
	udpAddr, ok := local.(*net.UDPAddr)
	if !ok {
		return
	}

	host := "127.0.0.1"
	if ip := udpAddr.IP; ip != nil && !ip.IsUnspecified() {
		host = ip.String()
	}
	address := net.JoinHostPort(host, strconv.Itoa(udpAddr.Port))

	info, err := game.QuerySQP(ctx, address, 5*time.Second)
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("SQP self-test failed")
		return
	}

	log.Info().
		Str("address", address).
		Str("name", info.ServerName).
		Uint16("players", info.CurrentPlayers).
		Uint16("max_players", info.MaxPlayers).
		Msg("SQP self-test passed")
}
