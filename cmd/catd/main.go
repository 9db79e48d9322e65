package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openx6100/catd/internal/app"
)

type launchOptions struct {
	ConfigFile   string
	PrintVersion bool
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	fs := flag.NewFlagSet("catd", flag.ContinueOnError)
	var opts launchOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "config file path (default: platform config dir)")
	fs.BoolVar(&opts.PrintVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	return opts, nil
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if opts.PrintVersion {
		fmt.Println(app.BuildVersionWithDate())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, opts.ConfigFile)
	if err != nil {
		slog.Error("initialize daemon runtime", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	_ = rt.Close()
}
