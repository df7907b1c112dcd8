package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/profiler"
	"github.com/colonyops/taskflow/internal/remote"
	"github.com/colonyops/taskflow/internal/taskflow"
)

type ServeCmd struct {
	flags *Flags
	app   *taskflow.App

	addr  string
	pprof string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, app *taskflow.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the local task store over HTTP",
		UsageText: "taskflow serve [--addr host:port]",
		Description: `Runs the task service other taskflow clients reach with --remote.
Tasks and categories are stored in the sqlite database in the data directory.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to server.addr from config)",
				Destination: &cmd.addr,
			},
			&cli.StringFlag{
				Name:        "pprof",
				Usage:       "also serve pprof handlers on this address (e.g. 127.0.0.1:6060)",
				Destination: &cmd.pprof,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	local := cmd.app.Local()
	if local == nil {
		return errors.New("serve needs the local store; unset --remote")
	}

	addr := cmd.addr
	if addr == "" {
		addr = cmd.app.Config.Server.Addr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.Component("server")
	e := remote.NewServer(local.Tasks, local.Categories, logger)

	if cmd.pprof != "" {
		prof := profiler.New(cmd.pprof, logger)
		if err := prof.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = prof.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Str("addr", addr).Msg("serving tasks")
	return remote.Serve(ctx, e, addr)
}
