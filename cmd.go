package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	addr       string
	port       int
	staticDir  string
	username   string
	password   string
	quiet      bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "memcrud",
		Short: "In-memory JSON CRUD server",
		Long: `memcrud serves CRUD endpoints over in-memory record collections.
Each endpoint is a path prefix such as /quotes with its own field policy.
Nothing is persisted: records live as long as the process.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRootConfig(cmd, &opts, os.Getenv)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.OutOrStdout(), opts.quiet)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	bindFlags(cmd, &opts)
	return cmd
}

func bindFlags(cmd *cobra.Command, opts *rootOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.addr, "addr", "", "listen address, e.g. :8080 (overrides --port)")
	flags.IntVarP(&opts.port, "port", "p", 0, "listen port (default from $PORT or 3000)")
	flags.StringVar(&opts.staticDir, "static-dir", "", "directory holding index.html and about.html")
	flags.StringVar(&opts.username, "username", "", "basic auth username for protected endpoints")
	flags.StringVar(&opts.password, "password", "", "basic auth password for protected endpoints")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "disable request logging")
}

// loadRootConfig layers config sources: built-ins, file, environment, flags.
func loadRootConfig(cmd *cobra.Command, opts *rootOptions, getenv func(string) string) (*Config, error) {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(getenv)

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Addr = fmt.Sprintf(":%d", opts.port)
	}
	if flags.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if flags.Changed("static-dir") {
		cfg.StaticDir = opts.staticDir
	}
	if flags.Changed("username") {
		cfg.Username = opts.username
	}
	if flags.Changed("password") {
		cfg.Password = opts.password
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
