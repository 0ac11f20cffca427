// Package main provides a bench tool that dispenses from a slot by label.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ieee-uottawa/vending-machine/internal/platform/config"
	"github.com/ieee-uottawa/vending-machine/internal/tools/slottest"
)

func main() {
	cfg, err := slottest.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := slottest.Run(ctx, cfg, os.Stdout, os.Stdin); err != nil {
		config.Exitf("slot test: %v", err)
	}
}
