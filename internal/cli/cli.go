// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cli implements the maprender command line.
//
//	maprender render -c project.yaml -o map.png
//	maprender render -c project.yaml --repeat 5 --metrics-addr :9090
//	maprender validate -c project.yaml
//	maprender version
package cli

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gogpu/mapcompose"
	"github.com/gogpu/mapcompose/config"
	"github.com/gogpu/mapcompose/metrics"
)

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	var (
		configFile string
		verbose    bool
	)
	rootCmd := &cobra.Command{
		Use:   "maprender",
		Short: "Render map projects to images",
		Long: `maprender renders a layer stack described in a YAML project file.
Layers are rendered in parallel, masked in a second pass when needed,
labeled, and composited into a PNG.`,
		Version:       mapcompose.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose {
				mapcompose.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "project.yaml", "project file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log scheduling decisions to stderr")

	rootCmd.AddCommand(buildRenderCommand(&configFile))
	rootCmd.AddCommand(buildValidateCommand(&configFile))
	rootCmd.AddCommand(buildVersionCommand())
	return rootCmd
}

type renderFlags struct {
	output      string
	repeat      int
	metricsAddr string
	timeout     time.Duration
}

func buildRenderCommand(configFile *string) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the project to a PNG file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.repeat < 1 {
				return errors.New("--repeat must be at least 1")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRender(ctx, cmd.OutOrStdout(), *configFile, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "map.png", "output PNG path")
	cmd.Flags().IntVar(&f.repeat, "repeat", 1, "number of render cycles; later cycles reuse the render cache")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while rendering")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "cancel a render cycle after this duration")
	return cmd
}

func runRender(ctx context.Context, out io.Writer, configFile string, f renderFlags) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	p, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build project: %w", err)
	}

	var opts []mapcompose.Option
	addr := f.metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, mapcompose.WithMetrics(metrics.NewCollector(reg)))
		shutdown, err := serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
		fmt.Fprintf(out, "metrics on http://%s/metrics\n", addr)
	}

	for cycle := range f.repeat {
		job := p.NewJob(opts...)
		img, err := renderCycle(ctx, job, f.timeout)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", cycle+1, err)
		}
		report(out, cycle+1, job)
		if cycle == f.repeat-1 {
			if err := writePNG(f.output, img); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(out, "wrote %s\n", f.output)
	return nil
}

func renderCycle(ctx context.Context, job *mapcompose.Job, timeout time.Duration) (*image.RGBA, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return job.Render(ctx)
}

func report(out io.Writer, cycle int, job *mapcompose.Job) {
	fmt.Fprintf(out, "cycle %d: %s\n", cycle, job.RenderingTime().Round(time.Microsecond))

	times := job.PerLayerRenderingTime()
	ids := slices.Sorted(maps.Keys(times))
	for _, id := range ids {
		fmt.Fprintf(out, "  %-20s %s\n", id, times[id].Round(time.Microsecond))
	}
	for _, e := range job.Errors() {
		layer := e.LayerID
		if layer == "" {
			layer = "labels"
		}
		fmt.Fprintf(out, "  error [%s] %s: %s\n", e.Kind, layer, e.Message)
	}
}

func writePNG(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// serveMetrics starts an HTTP server for reg and returns its shutdown
// function.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mapcompose.Logger().Warn("metrics server", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func buildValidateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a project file and list its layers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			p, err := cfg.Build()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := p.Settings
			fmt.Fprintf(out, "%s %dx%d, %d layers\n", s.DestinationCRS, s.OutputSize.X, s.OutputSize.Y, len(s.Layers))
			for _, l := range s.Layers {
				fmt.Fprintf(out, "  %-20s %s\n", l.ID(), l.Type())
			}
			return nil
		},
	}
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "maprender %s\n", mapcompose.Version)
		},
	}
}
