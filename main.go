package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/taskflow/internal/commands"
	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/core/styles"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
	"github.com/colonyops/taskflow/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		flowApp   = &taskflow.App{}
		ready     bool
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "taskflow",
		Usage:     "Keep a task list in sync with its store",
		UsageText: "taskflow [global options] command [command options]",
		Description: `Taskflow manages a categorized task list. Changes show up immediately and
are confirmed with the task store in the background; a change the store
rejects is undone.

Tasks live in a sqlite database in the data directory unless --remote points
at a running 'taskflow serve'.

Run 'taskflow' with no arguments to list tasks.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TASKFLOW_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/taskflow.log)",
				Sources:     cli.EnvVars("TASKFLOW_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TASKFLOW_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TASKFLOW_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "remote",
				Usage:       "base URL of a taskflow service (overrides remote.url)",
				Sources:     cli.EnvVars("TASKFLOW_REMOTE"),
				Destination: &flags.Remote,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/taskflow.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "taskflow.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile, logging.ContextHook{})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if flags.Remote != "" {
				cfg.Remote.URL = flags.Remote
			}
			flags.Config = cfg

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.Theme)
			styles.SetTheme(palette)

			opened, err := taskflow.Open(ctx, cfg, logging.Component("taskflow"))
			if err != nil {
				return ctx, err
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*flowApp = *opened
			ready = true
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if ready {
				if err := flowApp.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close task store")
					return err
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	taskCmd := commands.NewTaskCmd(flags, flowApp)

	app = taskCmd.Register(app)
	app = commands.NewCategoryCmd(flags, flowApp).Register(app)
	app = commands.NewServeCmd(flags, flowApp).Register(app)
	app = commands.NewDoctorCmd(flags, flowApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	// List tasks when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'taskflow --help' for usage", c.Args().First())
		}
		return taskCmd.ListAll(ctx, c)
	}

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		exitCode = 1
		if term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Println()
			fmt.Println(runErr.Error())
		} else {
			// scripts reading JSON lines get a JSON error on stderr
			_ = iojson.WriteError(runErr.Error(), nil)
		}
	}

	os.Exit(exitCode)
}
