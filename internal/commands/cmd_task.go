package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// TaskCmd implements the taskflow task command group.
type TaskCmd struct {
	flags *Flags
	app   *taskflow.App

	// list flags
	search   string
	category string

	// add/edit flags
	title       string
	description string
	taskCat     string
	priority    string
	due         string

	importReader iojson.FileReader[[]task.Draft]
}

// NewTaskCmd creates a new task command.
func NewTaskCmd(flags *Flags, app *taskflow.App) *TaskCmd {
	return &TaskCmd{flags: flags, app: app}
}

// Register adds the task command to the application.
func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "task",
		Usage: "Manage tasks",
		Description: `Task commands load the current list, apply one change and wait for the
store to confirm it. A change the store rejects is undone and reported.

Examples:
  taskflow task list --search report --category Work
  taskflow task add --title "Write report" --priority high --due 2026-11-01
  taskflow task done <id>
  taskflow task mv 3 0`,
		Commands: []*cli.Command{
			cmd.listCmd(),
			cmd.addCmd(),
			cmd.editCmd(),
			cmd.doneCmd(),
			cmd.rmCmd(),
			cmd.mvCmd(),
			cmd.importCmd(),
		},
	})

	return app
}

func (cmd *TaskCmd) listCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List tasks",
		UsageText: "taskflow task list [--search <text>] [--category <name>]",
		Description: `Lists tasks in order. Search matches title or description,
ignoring case. Output is a table on a terminal and JSON lines otherwise.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "search",
				Aliases:     []string{"s"},
				Usage:       "only tasks whose title or description contains text",
				Destination: &cmd.search,
			},
			&cli.StringFlag{
				Name:        "category",
				Aliases:     []string{"c"},
				Usage:       "only tasks in this category",
				Destination: &cmd.category,
			},
		},
		Action: cmd.runList,
	}
}

func (cmd *TaskCmd) draftFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "task title",
			Required:    required,
			Destination: &cmd.title,
		},
		&cli.StringFlag{
			Name:        "description",
			Aliases:     []string{"d"},
			Usage:       "task description",
			Destination: &cmd.description,
		},
		&cli.StringFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "category name (defaults to the configured default category)",
			Destination: &cmd.taskCat,
		},
		&cli.StringFlag{
			Name:        "priority",
			Aliases:     []string{"p"},
			Usage:       "priority (high, medium, low)",
			Destination: &cmd.priority,
		},
		&cli.StringFlag{
			Name:        "due",
			Usage:       "due date as YYYY-MM-DD",
			Destination: &cmd.due,
		},
	}
}

func (cmd *TaskCmd) addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a task",
		UsageText: "taskflow task add --title <title> [--description <text>] [--category <name>] [--priority <p>] [--due <date>]",
		Flags:     cmd.draftFlags(true),
		Action:    cmd.runAdd,
	}
}

func (cmd *TaskCmd) editCmd() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change fields of a task",
		UsageText: "taskflow task edit <id> [--title <title>] [--description <text>] [--category <name>] [--priority <p>] [--due <date>]",
		Description: `Only the flags given are changed. Pass --due "" to clear the due date.`,
		Flags:       cmd.draftFlags(false),
		Action:      cmd.runEdit,
	}
}

func (cmd *TaskCmd) doneCmd() *cli.Command {
	return &cli.Command{
		Name:      "done",
		Usage:     "Toggle whether a task is completed",
		UsageText: "taskflow task done <id>",
		Action:    cmd.runDone,
	}
}

func (cmd *TaskCmd) rmCmd() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a task",
		UsageText: "taskflow task rm <id>",
		Action:    cmd.runRm,
	}
}

func (cmd *TaskCmd) mvCmd() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move a task to another position",
		UsageText: "taskflow task mv <from> <to>",
		Description: `Moves the task at position <from> to position <to>. Positions are the
numbers shown by "taskflow task list" and start at 0.`,
		Action: cmd.runMv,
	}
}

func (cmd *TaskCmd) importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create tasks from a JSON array of drafts",
		UsageText: "taskflow task import [<file> | - | -f <file>]",
		Description: `Reads a JSON array of task drafts from a file or stdin and creates them in
order. Each entry takes the same fields as "task add":

  [{"title": "Write report", "category": "Work", "priority": "High"}]`,
		Flags:  []cli.Flag{cmd.importReader.Flag()},
		Action: cmd.runImport,
	}
}

// ListAll prints every task. It backs the root command's default action.
func (cmd *TaskCmd) ListAll(ctx context.Context, c *cli.Command) error {
	cmd.search, cmd.category = "", ""
	return cmd.runList(ctx, c)
}

func (cmd *TaskCmd) runList(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	cmd.app.Engine.SetSearch(cmd.search)
	cmd.app.Engine.SetCategory(cmd.category)

	out := c.Root().Writer
	if err := writeTasks(out, cmd.app.Engine.VisibleTasks()); err != nil {
		return err
	}
	if isTerminal(out) {
		writeStats(out, cmd.app.Engine.CompletionStats())
	}
	return nil
}

func (cmd *TaskCmd) runAdd(ctx context.Context, c *cli.Command) error {
	priority, ok := task.ParsePriority(cmd.priority)
	if !ok {
		return fmt.Errorf("invalid priority %q: must be one of high, medium, low", cmd.priority)
	}

	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	op, err := cmd.app.Engine.Create(ctx, task.Draft{
		Title:       cmd.title,
		Description: cmd.description,
		Category:    cmd.taskCat,
		Priority:    priority,
		DueDate:     cmd.due,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return cmd.settle(ctx, c, op)
}

func (cmd *TaskCmd) runEdit(ctx context.Context, c *cli.Command) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	var patch task.Patch
	if c.IsSet("title") {
		patch.Title = &cmd.title
	}
	if c.IsSet("description") {
		patch.Description = &cmd.description
	}
	if c.IsSet("category") {
		patch.Category = &cmd.taskCat
	}
	if c.IsSet("priority") {
		priority, ok := task.ParsePriority(cmd.priority)
		if !ok {
			return fmt.Errorf("invalid priority %q: must be one of high, medium, low", cmd.priority)
		}
		patch.Priority = &priority
	}
	if c.IsSet("due") {
		patch.DueDate = &cmd.due
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to change: pass at least one of --title, --description, --category, --priority, --due")
	}

	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	op, err := cmd.app.Engine.Update(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}

	return cmd.settle(ctx, c, op)
}

func (cmd *TaskCmd) runDone(ctx context.Context, c *cli.Command) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	op, err := cmd.app.Engine.ToggleComplete(ctx, id)
	if err != nil {
		return fmt.Errorf("toggle task %s: %w", id, err)
	}

	return cmd.settle(ctx, c, op)
}

func (cmd *TaskCmd) runRm(ctx context.Context, c *cli.Command) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	op, err := cmd.app.Engine.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	_, err = cmd.app.Settle(ctx, op)
	flushNotifications(cmd.app)
	return err
}

func (cmd *TaskCmd) runMv(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <from> <to>, got %d argument(s)", c.Args().Len())
	}
	from, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid <from> position %q", c.Args().Get(0))
	}
	to, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid <to> position %q", c.Args().Get(1))
	}

	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	op, err := cmd.app.Engine.Move(ctx, from, to)
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	if _, err := cmd.app.Settle(ctx, op); err != nil {
		flushNotifications(cmd.app)
		return err
	}
	flushNotifications(cmd.app)

	return writeTasks(c.Root().Writer, cmd.app.Engine.Tasks())
}

func (cmd *TaskCmd) runImport(ctx context.Context, c *cli.Command) error {
	drafts, err := cmd.importReader.Read(c.Args().First())
	if err != nil {
		return err
	}

	// Validate everything up front so a bad entry does not leave a partial import.
	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load tasks: %w", err)
	}

	ops := make([]*taskflow.Op, 0, len(drafts))
	for _, d := range drafts {
		d.Order = nil
		op, err := cmd.app.Engine.Create(ctx, d)
		if err != nil {
			return fmt.Errorf("create %q: %w", d.Title, err)
		}
		ops = append(ops, op)
	}

	var failed int
	created := make([]task.Task, 0, len(ops))
	for _, op := range ops {
		t, err := cmd.app.Settle(ctx, op)
		if err != nil {
			log.Warn().Err(err).Msg("import: create rejected")
			failed++
			continue
		}
		created = append(created, t)
	}
	flushNotifications(cmd.app)

	if err := writeTasks(c.Root().Writer, created); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d task(s) were not imported", failed, len(ops))
	}
	return nil
}

// settle waits for op, reports notifications and prints the resulting task.
func (cmd *TaskCmd) settle(ctx context.Context, c *cli.Command, op *taskflow.Op) error {
	t, err := cmd.app.Settle(ctx, op)
	flushNotifications(cmd.app)
	if err != nil {
		return err
	}
	return writeTask(c.Root().Writer, t)
}

func requireArg(c *cli.Command, name string) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument", name)
	}
	return c.Args().First(), nil
}
