// Command dsclient is the reference driver for the RPC-bus client core:
// it parses flags, resolves credentials, dials a transport, wires the RPC
// registry with a couple of demonstration providers, and optionally starts
// an audit sink and a debug/metrics HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dsbus/dsclient/core"
	"github.com/dsbus/dsclient/pkg/audit"
	"github.com/dsbus/dsclient/pkg/creds"
	"github.com/dsbus/dsclient/pkg/debugsrv"
	"github.com/dsbus/dsclient/pkg/transport"
)

func main() {
	logger := core.Logger()

	cfg := core.NewConfig()
	if err := cfg.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("could not parse flags")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	credentials := resolveCredentials(cfg, logger)

	pool := core.NewBufPool(false)
	conn, err := dial(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect")
	}

	client := core.NewClient(conn, credentials, logger)

	metrics := core.NewMetrics()
	client.SetMetrics(metrics)

	if sink := setupAudit(ctx, cfg, logger); sink != nil {
		client.SetAuditor(sink)
		defer sink.Close()
	}

	client.OnReady = func(c *core.Client) {
		c.Info().Msg("ready; RPC providers advertised")
	}

	registerDemoProviders(client)

	conn.OnClosed(client.OnTransportClosed)

	if cfg.MetricsListen != "" {
		srv := debugsrv.New(cfg.MetricsListen, client, metrics, logger)
		srv.Start()
		defer srv.Shutdown()
		logger.Info().Str("addr", cfg.MetricsListen).Msg("debug server listening")
	}

	logger.Info().Str("server", cfg.Server).Msg("starting read loop")
	if err := conn.ReadLoop(client.HandleServerDirective); err != nil {
		logger.Warn().Err(err).Msg("connection closed")
	}
}

// connTransport is the minimal surface main.go needs out of either
// transport implementation: core.Transport, plus OnClosed/ReadLoop.
type connTransport interface {
	core.Transport
	OnClosed(fn func())
	ReadLoop(handle transport.Handler) error
}

func dial(ctx context.Context, cfg *core.Config, pool *core.BufPool, logger zerolog.Logger) (connTransport, error) {
	switch cfg.Transport {
	case "ws", "websocket":
		return transport.DialWS(ctx, cfg.Server, pool, logger)
	default:
		return transport.DialTCP(ctx, cfg.Server, pool, logger)
	}
}

func resolveCredentials(cfg *core.Config, logger zerolog.Logger) core.Credentials {
	if cfg.Username != "" || cfg.Password != "" {
		return creds.NewStatic(cfg.Username, cfg.Password, cfg.MaxRetries)
	}
	env, err := creds.NewEnv("DSCLIENT_", cfg.MaxRetries)
	if err != nil {
		logger.Warn().Err(err).Msg("could not load credentials from environment, using empty credentials")
		return creds.NewStatic("", "", cfg.MaxRetries)
	}
	return env
}

func setupAudit(ctx context.Context, cfg *core.Config, logger zerolog.Logger) *audit.Multi {
	var sinks []audit.Sink

	if cfg.AuditFile != "" {
		f, err := audit.NewFile(audit.FileOptions{Path: cfg.AuditFile, Compress: "auto"}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("could not start file audit sink")
		} else {
			sinks = append(sinks, f)
		}
	}

	if cfg.AuditKafka != "" {
		k, err := audit.NewKafka(ctx, audit.KafkaOptions{Brokers: cfg.AuditKafka, Topic: cfg.AuditKafkaTopic}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("could not start kafka audit sink")
		} else {
			sinks = append(sinks, k)
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return audit.NewMulti(sinks...)
}

// registerDemoProviders wires a couple of illustrative RPC providers so
// the binary is runnable out of the box; real deployments register their
// own handlers the same way via client.Registry().Register. Auditing is
// handled centrally by Client.SetAuditor, not by individual handlers.
func registerDemoProviders(client *core.Client) {
	reg := client.Registry()

	_ = reg.Register("echo", func(call *core.RPCCall, c *core.Client) int {
		c.SendRPCResultString(call, string(call.Params))
		return 0
	}, false)

	_ = reg.Register("ping", func(call *core.RPCCall, c *core.Client) int {
		c.SendRPCResultString(call, `{"pong":true}`)
		return 0
	}, true)
}
