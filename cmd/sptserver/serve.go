package main

import (
	"context"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sptgo/gameserver/internal/config"
	"github.com/sptgo/gameserver/internal/errors"
)

type serveOptions struct {
	configPath string
	addr       string
	release    bool
	logLevel   string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the game server",
		Long: `Start the game server.

Configuration is read from http.json (see --config). Flags override the
file; without a file the defaults are used.

Examples:
  sptserver serve
  sptserver serve --config /etc/spt/http.json
  sptserver serve --addr 0.0.0.0:6969 --release`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to http.json (default: ./http.json if present)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address host:port (default from config)")
	cmd.Flags().BoolVar(&opts.release, "release", false, "Disable request/response logging")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

// loadConfig reads the config file, applies flag overrides and validates the
// result.
func loadConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	if opts.addr != "" {
		host, port, err := net.SplitHostPort(opts.addr)
		if err != nil {
			return nil, errors.New("E140").WithField("--addr").Wrap(err)
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.New("E140").WithField("--addr").WithExample("--addr 0.0.0.0:6969").Wrap(err)
		}
		if host != "" {
			cfg.IP = host
		}
		cfg.Port = n
	}
	if cmd.Flags().Changed("release") {
		cfg.Release = opts.release
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn("config warning", "warning", warning)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("routes registered", "count", a.router.Len(), "metrics", cfg.MetricsPath)
	return a.run(ctx)
}
