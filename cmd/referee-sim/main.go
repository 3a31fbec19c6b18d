package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/hantei/internal/simulator"
	"github.com/okian/hantei/pkg/logger"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("referee-sim", pflag.ContinueOnError)
	cfg, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Stderr.WriteString("invalid flags: " + err.Error() + "\n")
		os.Exit(2)
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.Verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := simulator.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}

func parseFlags(fs *pflag.FlagSet, args []string) (*simulator.Config, error) {
	cfg := &simulator.Config{}
	fs.StringVar(&cfg.BaseURL, "url", simulator.DefaultBaseURL, "base URL of the relay")
	fs.StringVar(&cfg.WSPath, "ws-path", simulator.DefaultWSPath, "websocket route on the relay")
	fs.StringVarP(&cfg.LicenseKey, "license", "l", "", "licence key shared by the display and referees")
	fs.IntVarP(&cfg.Referees, "referees", "r", simulator.DefaultReferees, "number of referees to connect")
	fs.IntVarP(&cfg.Agree, "agree", "a", simulator.DefaultAgree, "referees that send each signal")
	fs.IntVarP(&cfg.Signals, "signals", "n", simulator.DefaultSignals, "scoring rounds to play")
	fs.DurationVar(&cfg.Interval, "interval", simulator.DefaultInterval, "pause between rounds")
	fs.DurationVar(&cfg.Timeout, "timeout", simulator.DefaultTimeout, "deadline for each step")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every received frame")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}
