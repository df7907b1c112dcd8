package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
)

// CategoryCmd implements the taskflow category command group.
type CategoryCmd struct {
	flags *Flags
	app   *taskflow.App

	name  string
	color string
}

// NewCategoryCmd creates a new category command.
func NewCategoryCmd(flags *Flags, app *taskflow.App) *CategoryCmd {
	return &CategoryCmd{flags: flags, app: app}
}

// Register adds the category command to the application.
func (cmd *CategoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "category",
		Usage: "Manage task categories",
		Description: `Category commands list and edit the categories tasks are grouped by.
Open task counts are computed from the current task list.

Examples:
  taskflow category list
  taskflow category add --name Errands --color "#0EA5E9"
  taskflow category rm <id>`,
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List categories with open task counts",
				UsageText: "taskflow category list",
				Action:    cmd.runList,
			},
			{
				Name:      "add",
				Usage:     "Create a category",
				UsageText: "taskflow category add --name <name> [--color <hex>]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "name",
						Aliases:     []string{"n"},
						Usage:       "category name",
						Required:    true,
						Destination: &cmd.name,
					},
					&cli.StringFlag{
						Name:        "color",
						Usage:       "display color as #RRGGBB",
						Value:       task.DefaultCategoryColor,
						Destination: &cmd.color,
					},
				},
				Action: cmd.runAdd,
			},
			{
				Name:      "rm",
				Usage:     "Delete a category",
				UsageText: "taskflow category rm <id>",
				Description: `Deletes the category. Tasks keep their category name and simply
stop being counted.`,
				Action: cmd.runRm,
			},
		},
	})

	return app
}

func (cmd *CategoryCmd) runList(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.Engine.Load(ctx); err != nil {
		flushNotifications(cmd.app)
		return fmt.Errorf("load categories: %w", err)
	}
	return writeCategories(c.Root().Writer, cmd.app.Engine.Categories())
}

func (cmd *CategoryCmd) runAdd(ctx context.Context, c *cli.Command) error {
	created, err := cmd.app.Categories.Create(ctx, task.Category{Name: cmd.name, Color: cmd.color})
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return writeCategories(c.Root().Writer, []task.Category{created})
}

func (cmd *CategoryCmd) runRm(ctx context.Context, c *cli.Command) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	if _, err := cmd.app.Categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "deleted %s\n", id)
	return nil
}
