package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Veraticus/online-status/pkg/config"
	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/mockstore"
	"github.com/Veraticus/online-status/pkg/settings"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags and what PersistentPreRunE builds from them.
type rootOptions struct {
	out io.Writer

	configPath   string
	settingsPath string
	logLevel     string
	quiet        bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "See when friends come online and let them see you",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd.Flags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default $ONLINE_STATUS_CONFIG or ~/.config/online-status/config.yaml)")
	flags.StringVar(&opts.settingsPath, "settings", "", "Path to settings file (default $ONLINE_STATUS_SETTINGS or ~/.config/online-status/settings.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.quiet, "quiet", false, "Disable all notifications")

	cmd.AddCommand(
		newRunCommand(opts),
		newStatusCommand(opts),
		newHeartbeatCommand(opts),
		newSettingsCommand(opts),
		newDoctorCommand(opts),
		newMockServerCommand(opts),
	)
	return cmd
}

// init loads configuration and applies flag overrides on top of it.
func (o *rootOptions) init(flags *flag.FlagSet) error {
	if o.configPath == "" {
		o.configPath = config.Path()
	}
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("quiet") {
		cfg.Quiet = o.quiet
	}
	o.cfg = cfg

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	o.logger = logger

	if o.settingsPath == "" {
		o.settingsPath = config.SettingsPath()
	}
	return nil
}

func (o *rootOptions) openSettings() (*settings.Store, error) {
	return settings.Open(o.settingsPath, o.cfg.BaseURL)
}

// application wires every dependency against the loaded config and settings.
func (o *rootOptions) application() (*Application, func(), error) {
	store, err := o.openSettings()
	if err != nil {
		return nil, nil, err
	}
	deps, err := NewDependencies(o.cfg, store, o.logger, o.out)
	if err != nil {
		return nil, nil, err
	}
	return NewApplication(deps), deps.Close, nil
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the friend list, send heartbeats and notify on arrivals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeDeps, err := opts.application()
			if err != nil {
				return err
			}
			defer closeDeps()
			return app.Run(cmd.Context())
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch the friend list once and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeDeps, err := opts.application()
			if err != nil {
				return err
			}
			defer closeDeps()
			return app.Status(cmd.Context())
		},
	}
}

func newHeartbeatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat",
		Short: "Send one heartbeat now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeDeps, err := opts.application()
			if err != nil {
				return err
			}
			defer closeDeps()
			if err := app.Heartbeat(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "heartbeat sent")
			return nil
		},
	}
}

func newDoctorCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report configuration, settings, idle detection and store health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeDeps, err := opts.application()
			if err != nil {
				return err
			}
			defer closeDeps()
			return app.Doctor(cmd.Context(), cmd.OutOrStdout(), opts.configPath)
		},
	}
}

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the local user settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openSettings()
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), store)
			return nil
		},
	}

	var name, token, baseURL string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the display name, auth token or base URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("token") && !flags.Changed("base-url") {
				return errors.New("nothing to change: pass --name, --token or --base-url")
			}

			store, err := opts.openSettings()
			if err != nil {
				return err
			}
			_, err = store.Update(func(s *settings.Settings) error {
				if flags.Changed("name") {
					s.DisplayName = name
				}
				if flags.Changed("token") {
					s.AuthToken = token
				}
				if flags.Changed("base-url") {
					s.BaseURL = baseURL
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}

			opts.logger.Info("settings updated", zap.String("path", store.Path()))
			printSettings(cmd.OutOrStdout(), store)
			return nil
		},
	}
	set.Flags().StringVar(&name, "name", "", "Display name shown to friends")
	set.Flags().StringVar(&token, "token", "", "Auth token for the remote store")
	set.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the remote store")

	cmd.AddCommand(show, set)
	return cmd
}

func printSettings(w io.Writer, store *settings.Store) {
	snap := store.Snapshot()
	fmt.Fprintf(w, "file:         %s\n", store.Path())
	fmt.Fprintf(w, "uuid:         %s\n", snap.UUID)
	fmt.Fprintf(w, "display name: %s\n", orNone(snap.DisplayName))
	fmt.Fprintf(w, "auth token:   %s\n", maskToken(snap.AuthToken))
	fmt.Fprintf(w, "base url:     %s\n", orNone(snap.BaseURL))
}

// maskToken keeps the last four characters so the user can tell tokens apart.
func maskToken(token string) string {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 4:
		return strings.Repeat("*", len(token))
	default:
		return strings.Repeat("*", 8) + token[len(token)-4:]
	}
}

func newMockServerCommand(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		token   string
		dbPath  string
		mock    bool
		flip    float64
		seed    int64
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve a local presence store for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := mockstore.Open(dbPath, opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			handler, err := mockstore.NewHTTPHandler(store, mockstore.Options{
				Token:           token,
				OnlineTimeout:   timeout,
				Mock:            mock,
				FlipProbability: flip,
				Seed:            seed,
				Logger:          opts.logger.Named("mockstore"),
			})
			if err != nil {
				return err
			}

			return serve(cmd.Context(), &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}, opts.logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "127.0.0.1:8000", "HTTP listen address")
	flags.StringVar(&token, "token", "", "Required bearer token (empty accepts any request)")
	flags.StringVar(&dbPath, "db", mockstore.MemoryPath, "SQLite database path")
	flags.BoolVar(&mock, "mock", false, "Seed demo friends that flip state on each fetch")
	flags.Float64Var(&flip, "flip-probability", mockstore.DefaultFlipProbability, "Chance that each demo friend flips per fetch")
	flags.Int64Var(&seed, "seed", 0, "Random seed for flips (0 uses the clock)")
	flags.DurationVar(&timeout, "online-timeout", mockstore.DefaultOnlineTimeout, "Heartbeat age after which a user reads offline")
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
