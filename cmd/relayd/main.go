// relayd is the sharing gateway daemon: it fronts the capability ledger
// with a meta-transaction relay, proof-of-work admission, and signature
// login.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/bridge"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	logger, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := bridge.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	svc, err := bridge.NewService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize service", zap.Error(err))
	}
	if err := svc.Run(); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
