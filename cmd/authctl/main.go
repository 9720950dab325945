package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/chirp/internal/authctl"
	"github.com/dmitrijs2005/chirp/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	global, command := authctl.SplitArgs(os.Args[1:])

	cfg, err := config.LoadConfig(global)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := authctl.NewApp(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx, command); err != nil {
		if errors.Is(err, authctl.ErrUsage) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		return 1
	}
	return 0
}
