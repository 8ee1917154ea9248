package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"libdb.so/missimo"
	"libdb.so/missimo/board"
	"libdb.so/missimo/internal/probe"
	"libdb.so/missimo/rangesensor"
)

var (
	config   = "missimo.toml"
	samples  = 50
	filtered = false
	verbose  = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.IntVarP(&samples, "samples", "n", samples, "number of readings to take")
	pflag.BoolVar(&filtered, "filtered", filtered, "also take filtered readings")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if samples < 1 {
		return fmt.Errorf("invalid number of samples %d", samples)
	}

	cfg, err := readConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	d, err := missimo.NewDaemon(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	err = d.Do(ctx, func(ctx context.Context, s *missimo.Session) error {
		sensor := s.Robot.Sensor

		raw := probe.Take(samples, func() rangesensor.Distance {
			return sensor.Measure(board.TriggerPin, board.EchoPin)
		})
		if err := s.Sync(); err != nil {
			return err
		}
		fmt.Println("raw:     ", probe.Summarize(raw))

		if filtered {
			smooth := probe.Take(samples, sensor.MeasureFiltered)
			if err := s.Sync(); err != nil {
				return err
			}
			fmt.Printf("filtered: %v (%s, %d samples)\n",
				probe.Summarize(smooth), sensor.Config().Filter, sensor.Config().Samples)
		}

		return ctx.Err()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("probe failed: %w", err)
	}

	return nil
}

func readConfig() (*missimo.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return missimo.ParseConfig(f)
}
