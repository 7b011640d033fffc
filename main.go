// Package main provides silentcmd, which watches the level of an audio input
// and runs one command when sound appears and another after a period of
// silence.
//
// Usage:
//
//	silentcmd [flags] <cmd-on> <cmd-off>
//
// If -config is not specified, silentcmd uses config.json in the same
// directory as the binary when it exists.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oszuidwest/zwfm-silentcmd/internal/config"
	"github.com/oszuidwest/zwfm-silentcmd/internal/dispatch"
	"github.com/oszuidwest/zwfm-silentcmd/internal/eventlog"
	"github.com/oszuidwest/zwfm-silentcmd/internal/pipeline"
	"github.com/oszuidwest/zwfm-silentcmd/internal/source"
	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// drainTimeout bounds how long shutdown waits for queued commands.
const drainTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		slog.Error("invalid command line", "error", err)
		return 2
	}

	if opts.showVersion {
		fmt.Println(versionString())
		return 0
	}

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		slog.Error("failed to load env file", "path", opts.envFile, "error", err)
		return 1
	}

	cfg, err := loadConfig(opts, os.LookupEnv)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if cfg.Path() != "" {
		slog.Info("using config file", "path", cfg.Path())
	}

	if opts.listDevices {
		return listDevices(source.Backend(cfg.Source.Backend))
	}

	if opts.events > 0 {
		filter, err := eventlog.ParseFilter(opts.eventsFilter)
		if err != nil {
			slog.Error("invalid command line", "error", err)
			return 2
		}
		path := eventlog.ResolvePath(cfg.EventLog)
		if err := showEvents(os.Stdout, path, opts.events, opts.eventsOffset, filter); err != nil {
			slog.Error("failed to read event log", "path", path, "error", err)
			return 1
		}
		return 0
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	if opts.writeConfig != "" {
		if err := cfg.SaveAs(opts.writeConfig); err != nil {
			slog.Error("failed to write config", "path", opts.writeConfig, "error", err)
			return 1
		}
		slog.Info("config written", "path", opts.writeConfig)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	src, err := source.Open(sourceConfig(cfg))
	if err != nil {
		slog.Error("failed to open audio source", "error", err)
		return 1
	}
	closeSource := sync.OnceValue(src.Close)
	defer func() {
		if err := closeSource(); err != nil {
			slog.Warn("failed to close audio source", "error", err)
		}
	}()
	// A blocked read only returns once the source is closed.
	context.AfterFunc(ctx, func() { _ = closeSource() })

	slog.Info("audio source opened",
		"backend", cfg.Source.Backend,
		"format", src.Format().String(),
		"channels", cfg.Detection.Channels)

	if cfg.Analyze {
		return analyze(ctx, cfg, src)
	}
	return monitor(ctx, cfg, src)
}

// analyze prints the level of every block and the average of the input.
func analyze(ctx context.Context, cfg *config.Config, src source.Source) int {
	res, err := pipeline.Analyze(ctx, src, cfg.WindowSize(),
		cfg.Detection.Attack.Std(), cfg.Detection.Release.Std(), os.Stdout)
	if err != nil {
		slog.Error("analysis failed", "error", err)
		return 1
	}
	slog.Info("average", "blocks", res.Blocks, "level", res.Average, "level_db", res.AverageDB)
	return 0
}

// monitor runs the switching pipeline and the command dispatcher until the
// input ends or a shutdown signal arrives.
func monitor(ctx context.Context, cfg *config.Config, src source.Source) int {
	var (
		pipeOpts []pipeline.Option
		dispOpts []dispatch.Option
	)
	if cfg.EventLog != "" {
		path := eventlog.ResolvePath(cfg.EventLog)
		events, err := eventlog.NewLogger(path)
		if err != nil {
			slog.Error("failed to open event log", "path", path, "error", err)
			return 1
		}
		slog.Info("logging events", "path", path)
		defer func() {
			if err := events.Close(); err != nil {
				slog.Warn("failed to close event log", "error", err)
			}
		}()
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(events))
		dispOpts = append(dispOpts, dispatch.WithRecorder(events))
	}
	if cfg.Verbose {
		pipeOpts = append(pipeOpts, pipeline.WithVerbose(os.Stdout))
	}

	disp := dispatch.New(
		dispatch.Commands{On: cfg.Commands.On, Off: cfg.Commands.Off},
		dispatch.ExecRunner{Shell: cfg.Commands.Shell, Stdout: os.Stderr},
		dispOpts...)

	p, err := pipeline.New(src.Format(), pipelineConfig(cfg), disp, pipeOpts...)
	if err != nil {
		slog.Error("invalid channel selection", "error", err)
		return 1
	}

	// The dispatcher outlives the signal context so queued commands can
	// drain during shutdown.
	dispCtx, dispCancel := context.WithCancel(context.Background())
	defer dispCancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := disp.Run(dispCtx); err != nil {
			slog.Error("command dispatcher stopped, further transitions are ignored", "error", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer drain(disp, dispCancel)
		_, err := p.Run(ctx, src)
		return err
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, dispatch.ErrStart) {
			slog.Error("pipeline failed", "error", err)
		}
		return 1
	}
	slog.Info("shutdown complete")
	return 0
}

// drain closes the dispatcher and waits for queued commands to finish.
func drain(disp *dispatch.Dispatcher, cancel context.CancelFunc) {
	disp.Close()
	select {
	case <-disp.Done():
	case <-time.After(drainTimeout):
		slog.Warn("commands still pending at shutdown, dropping them", "pending", disp.Pending())
		cancel()
	}
}

// showEvents writes up to n logged events, newest first, as JSON lines.
func showEvents(w io.Writer, path string, n, offset int, filter eventlog.TypeFilter) error {
	events, more, err := eventlog.ReadLast(path, n, offset, filter)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	if more {
		slog.Info("older events available", "next_offset", offset+len(events))
	}
	return nil
}

func listDevices(backend source.Backend) int {
	devices, err := source.Devices(backend)
	if err != nil {
		slog.Error("failed to list devices", "backend", backend, "error", err)
		return 1
	}
	if len(devices) == 0 {
		slog.Warn("no capture devices found", "backend", backend)
		return 0
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\n", d.ID, d.Name)
	}
	return 0
}

func sourceConfig(cfg *config.Config) source.Config {
	return source.Config{
		Backend:    source.Backend(cfg.Source.Backend),
		Device:     cfg.Source.Device,
		Path:       cfg.Source.Path,
		SampleRate: cfg.Source.SampleRate,
		Channels:   cfg.CaptureChannels(),
		BitDepth:   cfg.Source.Bits,
		BufferSize: cfg.Source.BufferSize,
		FFmpegPath: cfg.Source.FFmpegPath,
	}
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Channels:    cfg.Detection.Channels,
		ThresholdDB: cfg.Detection.ThresholdDB,
		Timeout:     cfg.Detection.Timeout.Std(),
		Window:      cfg.WindowSize(),
		Attack:      cfg.Detection.Attack.Std(),
		Release:     cfg.Detection.Release.Std(),
		BufferSize:  cfg.Source.BufferSize,
	}
}
