package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZacxDev/video-compressor/internal/config"
	"github.com/ZacxDev/video-compressor/internal/server"
	"github.com/ZacxDev/video-compressor/internal/watcher"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/ZacxDev/video-compressor/pkg/videoprocessor"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "video-compressor",
		Short: "Shrink videos so they can be shared on messaging apps",
		Long: `video-compressor re-encodes videos to fit a messaging platform's limits.
Each file is scaled into the platform's bounding box and given a video bitrate
that keeps it near the platform's size limit.

Examples:
  # Convert two files
  video-compressor convert -o ./out holiday.mov party.mp4

  # Convert every video in a directory
  video-compressor convert -o ./out ~/Videos/trip

  # Convert whatever gets dropped into a folder
  video-compressor watch -o ./out ~/Dropbox/to-share`,
		SilenceUsage: true,
	}

	convertCmd = &cobra.Command{
		Use:   "convert [flags] <video|dir>...",
		Short: "Convert videos one after another",
		Long: fmt.Sprintf(`Convert each input in order. A failed file does not stop the batch;
the command exits non-zero if any file failed.

Supported platforms:
%s`, formatSupportedPlatforms()),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := converterOptions(cmd)
			opts.InputPaths = args
			opts.OutputDir, _ = cmd.Flags().GetString("output")

			cfg, err := videoprocessor.LoadConfig(opts)
			if err != nil {
				return err
			}
			logger := videoprocessor.NewLogger(cfg.LogLevel, opts.Verbose)

			ctx, stop := signalContext()
			defer stop()

			results, err := videoprocessor.ConvertVideos(ctx, opts, logger)
			if err != nil {
				return err
			}
			return printResults(results)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface",
		Long: `Serve POST /convert and a websocket progress stream on GET /events.

POST /convert takes {"inputPath": "<path>" | ["<path>", ...], "outputDir": "<dir>"}
and answers with one result for a single path or a result list for a list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := converterOptions(cmd)
			cfg, err := videoprocessor.LoadConfig(opts)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				cfg.ListenAddr = addr
			}

			logger := videoprocessor.NewLogger(cfg.LogLevel, opts.Verbose)
			if !logger.IsDebug() {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signalContext()
			defer stop()

			svc := videoprocessor.New(cfg, logger)
			return server.New(svc.Converter, svc.Bus, logger).ListenAndServe(ctx, cfg.ListenAddr)
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch [flags] <dir>",
		Short: "Convert videos dropped into a directory",
		Long: `Watch a directory and convert each video placed in it once its size stops
changing. Outputs go to --output, or next to the inputs when it is not set;
files carrying the platform's output suffix are never picked up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := converterOptions(cmd)
			cfg, err := videoprocessor.LoadConfig(opts)
			if err != nil {
				return err
			}
			outputDir, _ := cmd.Flags().GetString("output")

			info, err := os.Stat(args[0])
			if err != nil {
				return errors.Wrap(err, "cannot watch directory")
			}
			if !info.IsDir() {
				return errors.Errorf("%s is not a directory", args[0])
			}

			logger := videoprocessor.NewLogger(cfg.LogLevel, opts.Verbose)
			ctx, stop := signalContext()
			defer stop()

			svc := videoprocessor.New(cfg, logger)
			w := watcher.New(watcher.Options{
				Dir:         args[0],
				OutputDir:   outputDir,
				Suffix:      cfg.OutputSuffix,
				SettleDelay: cfg.Watch.SettleDelay,
				OnResult:    printResult,
			}, svc.Converter, logger)
			return w.Run(ctx)
		},
	}
)

func converterOptions(cmd *cobra.Command) *config.ConverterOptions {
	opts := &config.ConverterOptions{}
	opts.TargetPlatform, _ = cmd.Flags().GetString("target-platform")
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	return opts
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printResult(r types.ConversionResult) {
	if r.Success {
		fmt.Printf("OK    %s -> %s\n", r.InputPath, r.OutputPath)
		return
	}
	fmt.Printf("FAIL  %s: %s\n", r.InputPath, r.Error)
}

func printResults(results []types.ConversionResult) error {
	failed := 0
	for _, r := range results {
		printResult(r)
		if !r.Success {
			failed++
		}
	}
	fmt.Printf("%d of %d videos converted\n", len(results)-failed, len(results))
	if failed > 0 {
		return errors.Errorf("%d videos failed", failed)
	}
	return nil
}

func formatSupportedPlatforms() string {
	var sb strings.Builder
	for _, platform := range videoprocessor.GetSupportedPlatforms() {
		sb.WriteString(fmt.Sprintf("- %s\n", platform))
	}
	return sb.String()
}

func init() {
	rootCmd.PersistentFlags().StringP("target-platform", "t", config.DefaultPlatform,
		fmt.Sprintf("Target platform (%s)", strings.Join(videoprocessor.GetSupportedPlatforms(), ", ")))
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging, including ffmpeg output")

	convertCmd.Flags().StringP("output", "o", "", "Output directory")
	convertCmd.MarkFlagRequired("output")

	serveCmd.Flags().String("listen", "", fmt.Sprintf("Listen address (default %s)", config.DefaultListenAddr))

	watchCmd.Flags().StringP("output", "o", "", "Output directory (default: the watched directory)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
