package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/logger"
	"github.com/isdmx/aocd/mcpserver"
	"github.com/isdmx/aocd/sandbox"
	"github.com/isdmx/aocd/source"
	"github.com/isdmx/aocd/store"
)

// deps are the services a command works with.
type deps struct {
	fx.In

	Config      *config.Config
	Logger      *zap.Logger
	Direct      *source.Direct
	Coordinator *sandbox.Coordinator
}

// configDir is set by the --config-dir flag.
var configDir string

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.Load(configDir)
	}
	return config.New()
}

func newApp(opts ...fx.Option) *fx.App {
	base := []fx.Option{
		fx.Provide(
			// Config
			loadConfig,

			// Logger with configuration
			logger.NewFromConfig,

			// Databases, opened on first use
			store.New,

			// Puzzle site access
			source.NewDirectFromConfig,
			func(d *source.Direct) source.Source { return d },

			// Sandbox coordinator
			sandbox.NewCoordinatorFromConfig,

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(func(lc fx.Lifecycle, st *store.Store) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return st.Close()
				},
			})
		}),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	}
	return fx.New(append(base, opts...)...)
}

// runApp builds the application with extra options, runs fn while it is
// started and stops it again.
func runApp(cmd *cobra.Command, opt fx.Option, fn func(ctx context.Context) error) error {
	app := newApp(opt)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.Start(ctx); err != nil {
		return err
	}

	runErr := fn(ctx)
	stopErr := app.Stop(context.WithoutCancel(ctx))
	return errors.Join(runErr, stopErr)
}

func runWithDeps(cmd *cobra.Command, fn func(ctx context.Context, d deps) error) error {
	var d deps
	return runApp(cmd, fx.Invoke(func(in deps) { d = in }), func(ctx context.Context) error {
		return fn(ctx, d)
	})
}

// exitCodeError carries a child process exit code to main.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return "child exited with a failure status"
}

func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return &exitCodeError{code: code}
}
