// Package main provides a bench tool that pulses individual relays.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ieee-uottawa/vending-machine/internal/platform/config"
	"github.com/ieee-uottawa/vending-machine/internal/tools/relaytest"
)

func main() {
	cfg, err := relaytest.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := relaytest.Run(ctx, cfg, os.Stdout, os.Stdin); err != nil {
		config.Exitf("relay test: %v", err)
	}
}
