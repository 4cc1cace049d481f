package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/videocompress"
	"github.com/five82/videocompress/internal/cache"
	"github.com/five82/videocompress/internal/config"
	"github.com/five82/videocompress/internal/discovery"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/metrics"
	"github.com/five82/videocompress/internal/reporter"
	"github.com/five82/videocompress/internal/server"
	"github.com/five82/videocompress/internal/util"
	"github.com/five82/videocompress/internal/worker"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Printf("%s version %s (%s)\n", appName, appVersion, runtime.Version())
		},
	}
}

func newPresetsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List quality presets",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			presets := videocompress.Presets()
			if a.jsonMode {
				return json.NewEncoder(os.Stdout).Encode(presets)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUALITY\tNAME\tBOUNDS")
			for _, p := range presets {
				fmt.Fprintf(tw, "%d\t%s\t%dx%d\n", p.Quality, p.Name, p.Width, p.Height)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", videocompress.QualityPassThrough, "source", "unchanged")
			return tw.Flush()
		},
	}
}

func newInfoCommand(a *app) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "info <paths...>",
		Short: "Print media information for video files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := resolveInputs(args)
			if err != nil {
				return err
			}
			c, err := a.compressor()
			if err != nil {
				return err
			}

			results := worker.Run(cmd.Context(), workers, files, c.GetMediaInfo)

			enc := json.NewEncoder(os.Stdout)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			if !a.jsonMode {
				fmt.Fprintln(tw, "FILE\tDIMENSIONS\tDURATION\tROTATION\tSIZE")
			}
			failed := 0
			for _, r := range results {
				path := files[r.Index]
				if r.Err != nil {
					failed++
					logging.Error("Probe failed", "file", path, "error", r.Err)
					continue
				}
				if r.Value == nil {
					logging.Warn("No video track", "file", path)
					continue
				}
				if a.jsonMode {
					if err := enc.Encode(r.Value); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%d\t%s\n",
					filepath.Base(path), r.Value.Width, r.Value.Height,
					util.FormatDuration(float64(r.Value.Duration)/1000),
					r.Value.Orientation, util.FormatBytes(r.Value.FileSize))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be probed", failed, len(files))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", worker.DefaultWorkers(), "Number of files probed in parallel")
	return cmd
}

func newThumbnailCommand(a *app) *cobra.Command {
	var (
		quality  int
		position float64
		format   string
		stdout   bool
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "thumbnail <paths...>",
		Short: "Extract a thumbnail frame into the cache directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.ParseThumbnailFormat(format)
			if err != nil {
				return err
			}
			files, err := resolveInputs(args)
			if err != nil {
				return err
			}
			c, err := a.compressor(videocompress.WithThumbnailFormat(f))
			if err != nil {
				return err
			}

			if stdout {
				if len(files) != 1 {
					return fmt.Errorf("--stdout needs exactly one input, got %d", len(files))
				}
				data, err := c.GetByteThumbnail(cmd.Context(), files[0], quality, position)
				if err != nil {
					return err
				}
				if data == nil {
					return fmt.Errorf("no frame available at %gs in %s", position, files[0])
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			results := worker.Run(cmd.Context(), workers, files, func(ctx context.Context, path string) (string, error) {
				return c.GetFileThumbnail(ctx, path, quality, position)
			})
			failed := 0
			for _, r := range results {
				path := files[r.Index]
				switch {
				case r.Err != nil:
					failed++
					logging.Error("Thumbnail failed", "file", path, "error", r.Err)
				case r.Value == "":
					a.rep.Warning("No frame available for " + filepath.Base(path))
				default:
					fmt.Println(r.Value)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d thumbnails failed", failed, len(files))
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&quality, "quality", "q", 75, "Image quality (1-100)")
	fl.Float64VarP(&position, "position", "p", 0, "Frame position in seconds")
	fl.StringVarP(&format, "format", "f", string(config.ThumbnailJPEG), "Image format (jpeg, webp)")
	fl.BoolVar(&stdout, "stdout", false, "Write the image bytes to stdout")
	fl.IntVarP(&workers, "workers", "w", worker.DefaultWorkers(), "Number of files processed in parallel")
	return cmd
}

// compressArgs holds the parsed flags of the compress command.
type compressArgs struct {
	quality        int
	start          float64
	duration       float64
	noAudio        bool
	frameRate      int
	bitrate        int
	deleteOriginal bool
	validate       bool
}

// request builds the per-file request, leaving unset flags nil.
func (ca compressArgs) request(cmd *cobra.Command, path string) videocompress.CompressionRequest {
	req := videocompress.CompressionRequest{
		Path:           path,
		Quality:        ca.quality,
		DeleteOriginal: ca.deleteOriginal,
	}
	fl := cmd.Flags()
	if fl.Changed("start") {
		v := ca.start
		req.StartTime = &v
	}
	if fl.Changed("duration") {
		v := ca.duration
		req.Duration = &v
	}
	if ca.noAudio {
		v := false
		req.IncludeAudio = &v
	}
	if fl.Changed("fps") {
		v := ca.frameRate
		req.FrameRate = &v
	}
	if fl.Changed("bitrate") {
		v := ca.bitrate
		req.Bitrate = &v
	}
	return req
}

func newCompressCommand(a *app) *cobra.Command {
	var ca compressArgs

	cmd := &cobra.Command{
		Use:   "compress <paths...>",
		Short: "Compress video files into the cache directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := resolveInputs(args)
			if err != nil {
				return err
			}
			var extra []videocompress.Option
			if ca.validate {
				extra = append(extra, videocompress.WithValidation())
			}
			c, err := a.compressor(extra...)
			if err != nil {
				return err
			}
			return runBatch(cmd, a, c, ca, files)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&ca.quality, "quality", "q", videocompress.Quality720HD, "Quality preset (0 keeps the source size, see 'presets')")
	fl.Float64Var(&ca.start, "start", 0, "Trim start in seconds")
	fl.Float64Var(&ca.duration, "duration", 0, "Trim duration in seconds")
	fl.BoolVar(&ca.noAudio, "no-audio", false, "Drop the audio track")
	fl.IntVar(&ca.frameRate, "fps", 0, "Maximum output frame rate")
	fl.IntVar(&ca.bitrate, "bitrate", 0, "Maximum output video bitrate in bits per second")
	fl.BoolVar(&ca.deleteOriginal, "delete-original", false, "Delete each source after a successful compression")
	fl.BoolVar(&ca.validate, "validate", false, "Probe each output and check it against the target")
	return cmd
}

// runBatch compresses files one after another. A failed file is reported
// and the batch moves on; an interrupt stops the batch.
func runBatch(cmd *cobra.Command, a *app, c *videocompress.Compressor, ca compressArgs, files []string) error {
	ctx := cmd.Context()
	rep := a.rep
	a.reportHardware()

	if len(files) > 1 {
		rep.BatchStarted(reporter.BatchStartInfo{
			TotalFiles: len(files),
			FileList:   files,
			OutputDir:  c.CacheDir(),
		})
	}

	batchStart := time.Now()
	summary := reporter.BatchSummary{TotalFiles: len(files)}
	failed := 0

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		if len(files) > 1 {
			rep.FileProgress(reporter.FileProgressContext{CurrentFile: i + 1, TotalFiles: len(files)})
		}

		// Taken up front; the source may be deleted on success.
		originalSize, _ := util.GetFileSize(path)

		info, err := c.CompressVideo(ctx, ca.request(cmd, path))
		if err != nil {
			failed++
			// The session has already reported the failure.
			logging.Error("Compression failed", "file", path, "error", err)
			continue
		}
		if info.Cancelled() {
			summary.CancelledCount++
			continue
		}

		summary.SuccessfulCount++
		summary.TotalOriginalSize += originalSize
		summary.TotalEncodedSize += info.FileSize
		summary.FileResults = append(summary.FileResults, reporter.FileResult{
			Filename:  filepath.Base(path),
			Reduction: util.CalculateSizeReduction(originalSize, info.FileSize),
		})
	}

	summary.TotalDuration = time.Since(batchStart)
	if len(files) > 1 {
		rep.BatchComplete(summary)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d of %d files", summary.SuccessfulCount, len(files))
	}
	return nil
}

func newClearCacheCommand(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove compressed outputs and thumbnails from the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m := cache.New(a.cfg.CacheDir)
			before, err := m.Usage()
			if err != nil {
				return err
			}

			var removed int
			if olderThan > 0 {
				removed, err = m.CleanStale(olderThan)
			} else {
				removed, err = m.Clear()
			}
			if err != nil {
				return err
			}

			after, _ := m.Usage()
			freed := uint64(0)
			if before > after {
				freed = before - after
			}
			a.rep.OperationComplete(fmt.Sprintf("Removed %d entries from %s, freed %s",
				removed, m.Dir(), util.FormatBytes(freed)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove entries older than this age (e.g. 72h)")
	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the method-call API, progress stream and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.cfg.ListenAddr
			if listen != "" {
				addr = listen
			}
			c, err := a.compressor()
			if err != nil {
				return err
			}

			metrics.InitializeMetrics()
			metrics.SetAppInfo(appVersion, runtime.Version())

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				if n := c.CancelCompression(); n > 0 {
					logging.Info("Cancelled running compressions on shutdown", "sessions", n)
				}
			}()

			return server.New(c).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides listen_addr)")
	return cmd
}

// resolveInputs expands files and directories and logs what was skipped.
func resolveInputs(args []string) ([]string, error) {
	res, err := discovery.Resolve(args)
	if err != nil {
		return nil, err
	}
	if res.SkippedCount > 0 {
		logging.Info("Skipped non-video inputs", "count", res.SkippedCount)
	}
	return res.Files, nil
}
