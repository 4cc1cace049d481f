// Package main provides the CLI entry point for videocompress.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/five82/videocompress"
	"github.com/five82/videocompress/internal/config"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/reporter"
	"github.com/five82/videocompress/internal/util"
)

const (
	appName    = "videocompress"
	appVersion = "0.3.0"
)

// globalFlags holds the flags shared by every command.
type globalFlags struct {
	configPath string
	cacheDir   string
	logDir     string
	verbose    bool
	json       bool
	noLog      bool
}

// app is the state built once per invocation by the root pre-run hook.
type app struct {
	cfg      *config.Config
	rep      reporter.Reporter
	runLog   *logging.RunLog
	jsonMode bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var gf globalFlags
	a := &app{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Video compression tool",
		Long:          "Probe, thumbnail and compress video files to bounded-size H.264/AAC MP4.",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, gf)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.runLog.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&gf.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&gf.cacheDir, "cache-dir", "", "Cache directory for outputs and thumbnails")
	pf.StringVarP(&gf.logDir, "log-dir", "l", "", "Log directory (defaults to CACHE_DIR/logs)")
	pf.BoolVarP(&gf.verbose, "verbose", "v", false, "Enable verbose output for troubleshooting")
	pf.BoolVar(&gf.json, "json", false, "Emit machine-readable JSON events")
	pf.BoolVar(&gf.noLog, "no-log", false, "Disable log file creation")

	root.AddCommand(
		newInfoCommand(a),
		newThumbnailCommand(a),
		newCompressCommand(a),
		newPresetsCommand(a),
		newClearCacheCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration, starts logging and picks the reporter.
func (a *app) setup(cmd *cobra.Command, gf globalFlags) error {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if gf.cacheDir != "" {
		cfg.CacheDir = gf.cacheDir
		cfg.LogDir = ""
	}
	if gf.logDir != "" {
		cfg.LogDir = gf.logDir
	}
	if gf.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	// The version command never touches the cache.
	if cmd.Name() != "version" {
		a.runLog, err = logging.Setup(cfg.GetLogDir(), gf.verbose, gf.noLog)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		if a.runLog == nil {
			logging.Init(logging.LevelInfo, os.Stderr)
		}
		if err := logging.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	a.jsonMode = gf.json || !term.IsTerminal(int(os.Stdout.Fd()))
	if a.jsonMode {
		jr := reporter.NewJSONReporter()
		jr.SetVerbose(gf.verbose)
		a.rep = jr
	} else {
		a.rep = reporter.NewTerminalReporter(gf.verbose)
	}
	return nil
}

// compressor builds the library entry point from the loaded config.
func (a *app) compressor(extra ...videocompress.Option) (*videocompress.Compressor, error) {
	opts := append([]videocompress.Option{
		videocompress.WithConfig(a.cfg),
		videocompress.WithReporter(a.rep),
	}, extra...)
	return videocompress.New(opts...)
}

// reportHardware emits the host summary.
func (a *app) reportHardware() {
	info := util.GetSystemInfo()
	a.rep.Hardware(reporter.HardwareSummary{
		Hostname: info.Hostname,
		NumCPU:   info.NumCPU,
		OS:       info.OS + "/" + info.Arch,
	})
}
