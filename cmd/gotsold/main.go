package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"gotsol/config"
	"gotsol/core"
	"gotsol/core/state"
	"gotsol/native/common"
	"gotsol/observability"
	"gotsol/observability/logging"
	telemetry "gotsol/observability/otel"
	"gotsol/rpc"
	"gotsol/storage"
	"gotsol/storage/eventlog"
)

const (
	serviceName     = "gotsold"
	configPathEnv   = "GOTSOL_CONFIG"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "./config.toml", "Path to the configuration file (or set GOTSOL_CONFIG env var)")
	envFileFlag := flag.String("env-file", ".env", "Optional dotenv file loaded before the configuration")
	listenFlag := flag.String("listen", "", "Override rpc.ListenAddress")
	flag.Parse()

	if err := godotenv.Load(*envFileFlag); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFileFlag, err)
	}
	if envConfig := strings.TrimSpace(os.Getenv(configPathEnv)); envConfig != "" && !flag.CommandLine.Changed("config") {
		*configFlag = envConfig
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *listenFlag != "" {
		cfg.RPC.ListenAddress = *listenFlag
	}
	logger := logging.Setup(serviceName, cfg.Environment, cfg.LoggingOptions())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryConfig(serviceName))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.Open(cfg.Storage.Backend, statePath(cfg))
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	params, err := cfg.MerchantParams()
	if err != nil {
		return err
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithTracer(telemetry.Tracer()),
		core.WithPauses(common.NewStaticPauses(cfg.PausedModules...)),
		core.WithSinks(observability.Events()),
	}
	var events rpc.EventLister
	if path := cfg.Path(cfg.Storage.EventLog); path != "" {
		log, err := eventlog.Open(path)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer log.Close()
		events = log
		opts = append(opts, core.WithSinks(log))
	}
	processor, err := core.NewStateProcessor(db, params, opts...)
	if err != nil {
		return err
	}

	var applied bool
	if err := processor.Genesis(func(m *state.Manager) error {
		var err error
		applied, err = cfg.Genesis.Apply(m)
		return err
	}); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis allocations applied",
			slog.Int("accounts", len(cfg.Genesis.Accounts)),
			slog.Int("mints", len(cfg.Genesis.Mints)))
	}

	server, err := rpc.NewServer(processor, events, rpcConfig(cfg), rpc.WithLogger(logger))
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.RPC.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPC.ListenAddress, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(listener) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func statePath(cfg *config.Config) string {
	if strings.EqualFold(cfg.Storage.Backend, "bolt") {
		return cfg.Path("state.bolt")
	}
	return cfg.Path("state")
}

func rpcConfig(cfg *config.Config) rpc.Config {
	out := rpc.Config{
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		ReplayWindow:       cfg.ReplayWindow(),
		ReadHeaderTimeout:  time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeout) * time.Second,
	}
	if jwt := cfg.RPC.JWT; jwt.Enable {
		out.Operator = rpc.OperatorAuth{
			Enable:   true,
			Secret:   []byte(strings.TrimSpace(os.Getenv(jwt.HSSecretEnv))),
			Issuer:   jwt.Issuer,
			Audience: jwt.Audience,
			MaxSkew:  time.Duration(jwt.MaxSkewSeconds) * time.Second,
		}
	}
	return out
}
