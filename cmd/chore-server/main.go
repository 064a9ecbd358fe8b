package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ctfer-io/chore-server/global"
	"github.com/ctfer-io/chore-server/pkg/cors"
	"github.com/ctfer-io/chore-server/pkg/fs"
	"github.com/ctfer-io/chore-server/pkg/lock"
	"github.com/ctfer-io/chore-server/server"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
	BuiltBy = ""
)

const shutdownTimeout = 10 * time.Second

func main() {
	conf := &global.Configuration{}
	cmd := newCommand(conf)

	ctx := context.Background()
	if err := cmd.Run(ctx, os.Args); err != nil {
		global.Log().Error(ctx, "fatal error",
			zap.Error(err),
		)
		os.Exit(1)
	}
}

// newCommand builds the server command, binding every flag to conf.
func newCommand(conf *global.Configuration) *cli.Command {
	return &cli.Command{
		Name:  "chore-server",
		Usage: "Persist the chore board state for its static frontend",
		Flags: []cli.Flag{
			cli.VersionFlag,
			cli.HelpFlag,
			&cli.StringFlag{
				Name:        "host",
				Sources:     cli.EnvVars("HOST"),
				Category:    "global",
				Destination: &conf.Host,
				Usage:       "Define the address to bind, all interfaces if empty (required by most PaaS).",
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Sources:     cli.EnvVars("PORT"),
				Category:    "global",
				Value:       3000,
				Destination: &conf.Port,
				Usage:       "Define the API server port to listen on.",
			},
			&cli.StringFlag{
				Name:        "log-level",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Category:    "global",
				Value:       "info",
				Destination: &conf.LogLevel,
				Action: func(_ context.Context, _ *cli.Command, lvl string) error {
					_, err := zapcore.ParseLevel(lvl)
					return err
				},
				Usage: "Use to specify the level of logging.",
			},
			&cli.BoolFlag{
				Name:        "tracing",
				Sources:     cli.EnvVars("TRACING"),
				Category:    "global",
				Destination: &conf.Tracing,
				Usage:       "If set, export traces, metrics and logs through OTLP (configured by the OTEL_* variables).",
			},
			&cli.StringFlag{
				Name:        "service-name",
				Sources:     cli.EnvVars("OTEL_SERVICE_NAME"),
				Category:    "global",
				Value:       global.DefaultServiceName,
				Destination: &conf.ServiceName,
				Usage:       "Define the service name telemetry is exported under, if tracing is set.",
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Aliases:     []string{"d"},
				Sources:     cli.EnvVars("DATA_DIR"),
				Category:    "store",
				Value:       "data",
				Destination: &conf.Directory,
				Usage:       "Define the directory to read/write chore-state.json to. Mount a persistent volume there.",
			},
			&cli.Int64Flag{
				Name:        "max-body-size",
				Sources:     cli.EnvVars("MAX_BODY_SIZE"),
				Category:    "store",
				Value:       server.DefaultMaxBodySize,
				Destination: &conf.MaxBodySize,
				Action: func(_ context.Context, _ *cli.Command, size int64) error {
					if size <= 0 {
						return fmt.Errorf("max body size must be positive, got %d", size)
					}
					return nil
				},
				Usage: "Define the maximum size of a chore state, in bytes.",
			},
			&cli.BoolFlag{
				Name:        "atomic-write",
				Sources:     cli.EnvVars("ATOMIC_WRITE"),
				Category:    "store",
				Value:       true,
				Destination: &conf.Store.Atomic,
				Usage:       "If set, write the state to a temporary file then rename it, so a crash never leaves a torn file.",
			},
			&cli.StringFlag{
				Name:        "lock",
				Sources:     cli.EnvVars("LOCK_KIND"),
				Category:    "store",
				Value:       lock.KindLocal,
				Destination: &conf.Store.Lock,
				Action: func(_ context.Context, _ *cli.Command, kind string) error {
					if !slices.Contains(lock.Kinds, kind) {
						return fmt.Errorf("unknown lock kind %q, expected one of %s", kind, strings.Join(lock.Kinds, ", "))
					}
					return nil
				},
				Usage: "Define how state accesses are serialized: local (in-process) or flock (across processes sharing the volume).",
			},
			&cli.StringFlag{
				Name:        "cors.policy",
				Sources:     cli.EnvVars("CORS_POLICY"),
				Category:    "cors",
				Value:       cors.PresetTrusted,
				Destination: &conf.CORS.Policy,
				Action: func(_ context.Context, _ *cli.Command, policy string) error {
					if !slices.Contains(cors.Presets, policy) {
						return fmt.Errorf("unknown CORS policy %q, expected one of %s", policy, strings.Join(cors.Presets, ", "))
					}
					return nil
				},
				Usage: "Define which origins may call the API: exact, wildcard or trusted.",
			},
			&cli.StringSliceFlag{
				Name:        "cors.origins",
				Sources:     cli.EnvVars("ALLOWED_ORIGINS"),
				Category:    "cors",
				Value:       []string{"https://chores2d.tiiny.site"},
				Destination: &conf.CORS.Origins,
				Usage:       "If policy is exact, define the accepted origins.",
			},
			&cli.StringSliceFlag{
				Name:        "cors.suffixes",
				Sources:     cli.EnvVars("TRUSTED_SUFFIXES"),
				Category:    "cors",
				Value:       []string{"tiiny.site"},
				Destination: &conf.CORS.Suffixes,
				Usage:       "If policy is trusted, define the domain suffixes accepted along localhost.",
			},
			&cli.StringFlag{
				Name:        "cors.config",
				Sources:     cli.EnvVars("CORS_CONFIG"),
				Category:    "cors",
				Destination: &conf.CORS.File,
				Usage:       "Define a YAML file describing the CORS policy. It overrides the other cors flags.",
				TakesFile:   true,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return run(ctx, conf)
		},
		Version: Version,
		Metadata: map[string]any{
			"version": Version,
			"commit":  Commit,
			"date":    Date,
			"builtBy": BuiltBy,
		},
	}
}

func run(ctx context.Context, conf *global.Configuration) (err error) {
	// Pre-flight global configuration
	global.Version = Version
	if err := global.SetLogLevel(conf.LogLevel); err != nil {
		return err
	}

	// Set up OpenTelemetry before the logger is built so logs get exported
	if conf.Tracing {
		otelShutdown, oerr := global.SetupOTelSDK(ctx, conf.ServiceName)
		if oerr != nil {
			return oerr
		}
		defer func() {
			err = multierr.Append(err, otelShutdown(context.WithoutCancel(ctx)))
		}()
	}

	policy, err := newPolicy(conf)
	if err != nil {
		return err
	}

	store, err := fs.NewStore(fs.Options{
		Directory: conf.Directory,
		Atomic:    conf.Store.Atomic,
		Lock:      conf.Store.Lock,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	logger := global.Log()
	logger.Info(ctx, "starting API server",
		zap.Int("port", conf.Port),
		zap.String("directory", store.Directory()),
		zap.String("cors_policy", policy.Preset()),
		zap.Bool("atomic_write", conf.Store.Atomic),
		zap.String("lock", conf.Store.Lock),
	)

	// Create context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(server.Options{
		Host:        conf.Host,
		Port:        conf.Port,
		MaxBodySize: conf.MaxBodySize,
		Store:       store,
		Policy:      policy,
	})
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "chore server running",
		zap.String("address", srv.Addr()),
		zap.String("state_file", store.Path()),
	)

	// Listen for the interrupt signal
	<-ctx.Done()

	// Restore default behavior on the interrupt signal
	stop()
	logger.Info(ctx, "shutting down gracefully")

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func newPolicy(conf *global.Configuration) (*cors.Policy, error) {
	if conf.CORS.File != "" {
		pconf, err := cors.LoadConfig(conf.CORS.File)
		if err != nil {
			return nil, err
		}
		return cors.New(*pconf)
	}
	return cors.New(cors.Config{
		Policy:   conf.CORS.Policy,
		Origins:  conf.CORS.Origins,
		Suffixes: conf.CORS.Suffixes,
	})
}
