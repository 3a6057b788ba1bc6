package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-pipekit/stagepool"
	"github.com/go-pipekit/stagepool/config"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

func main() {
	app := buildApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp() *cli.App {
	app := cli.NewApp()
	app.Name = "stagedemo"
	app.Usage = "feed items through a chain of worker pool stages and report the drain"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "conf, config, c",
			Usage: "path to a YAML config file",
		},
		cli.IntFlag{
			Name:  "items, n",
			Usage: "number of items to feed, overrides the config",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "lowest visible log level, overrides the config",
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := config.Load(c.String("conf"))
		if err != nil {
			return err
		}
		if n := c.Int("items"); n > 0 {
			cfg.Demo.Items = n
		}
		if l := c.String("level"); l != "" {
			cfg.Logging.Level = l
		}
		return run(cfg)
	}
	return app
}

func run(cfg *config.Config) error {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := stagepool.NewMetricsOn(reg, "stagepool", "demo")

	formatted := atomic.Int64{}
	digits := atomic.Int64{}
	tail := stagepool.NewTerminal(func(s string) {
		formatted.Add(1)
		digits.Add(int64(len(s)))
	})

	format, err := stagepool.StartWith(func(item int, next stagepool.Link[string]) {
		next.Process(strconv.Itoa(item))
	}, tail, cfg.Demo.FormatWorkers, stagepool.Options{
		Name:    "format",
		Logger:  &logger,
		Metrics: metrics,
	})
	if err != nil {
		return errors.Wrap(err, "starting format stage")
	}

	square, err := stagepool.StartWith(func(item int, next stagepool.Link[int]) {
		next.Process(item * item)
	}, format, cfg.Demo.SquareWorkers, stagepool.Options{
		Name:    "square",
		Logger:  &logger,
		Metrics: metrics,
	})
	if err != nil {
		format.Finish()
		<-tail.Done()
		return errors.Wrap(err, "starting square stage")
	}

	start := time.Now()
	for i := 0; i < cfg.Demo.Items; i++ {
		square.Process(i)
	}
	square.Finish()

	// The finish cascades stage by stage; the tail reporting done means
	// every stage has drained.
	<-square.Done()
	<-format.Done()
	<-tail.Done()

	logger.Info().
		Int("items", cfg.Demo.Items).
		Int64("formatted", formatted.Load()).
		Int64("digits", digits.Load()).
		Uint64("square_dispatched", square.Stats().Dispatched).
		Uint64("format_dispatched", format.Stats().Dispatched).
		Dur("took", time.Since(start)).
		Msg("pipeline drained")

	if cfg.Demo.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.Demo.MetricsFile, reg); err != nil {
			return errors.Wrapf(err, "writing metrics to %s", cfg.Demo.MetricsFile)
		}
		logger.Info().Str("path", cfg.Demo.MetricsFile).Msg("metrics written")
	}
	return nil
}

func buildLogger(cfg config.Logging) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, errors.Wrapf(err, "parsing log level %q", cfg.Level)
	}
	var out io.Writer = os.Stderr
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
