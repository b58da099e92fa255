package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/angganurf/wunderland-sol/internal/composition/ledgerd"
	"github.com/angganurf/wunderland-sol/internal/config"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("ledgerd", pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "path to ledgerd.yaml (optional)")
	rpcAddr := flagSet.String("rpc-addr", "", "JSON-RPC listen address override")
	metricsAddr := flagSet.String("metrics-addr", "", "Prometheus listen address override")
	storagePath := flagSet.String("data", "", "storage path override")
	devFaucet := flagSet.Bool("dev-faucet", false, "enable faucet.airdrop (development only)")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("ledgerd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *rpcAddr != "" {
		cfg.RPC.Addr = *rpcAddr
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if flagSet.Changed("dev-faucet") {
		cfg.Ledger.Policy.DevFaucet = *devFaucet
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := ledgerd.Build(cfg, os.Stderr)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
