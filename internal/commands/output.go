package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/colonyops/taskflow/internal/core/notify"
	"github.com/colonyops/taskflow/internal/core/styles"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// isTerminal reports whether w is an interactive terminal. Anything else
// gets JSON lines.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeTasks(w io.Writer, tasks []task.Task) error {
	if !isTerminal(w) {
		for _, t := range tasks {
			if err := iojson.WriteLine(w, t); err != nil {
				return fmt.Errorf("encode task: %w", err)
			}
		}
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tID\tTITLE\tCATEGORY\tPRIORITY\tDUE\tDONE")
	for _, t := range tasks {
		done := ""
		if t.Completed {
			done = "x"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Order, t.ID, t.Title, t.Category, t.Priority, dueLabel(t, now), done)
	}
	return tw.Flush()
}

func dueLabel(t task.Task, now time.Time) string {
	switch t.DueStatus(now) {
	case task.DueOverdue:
		return t.DueDate + " (overdue)"
	case task.DueToday:
		return t.DueDate + " (today)"
	default:
		return t.DueDate
	}
}

func writeTask(w io.Writer, t task.Task) error {
	return writeTasks(w, []task.Task{t})
}

func writeCategories(w io.Writer, cats []task.Category) error {
	if !isTerminal(w) {
		for _, c := range cats {
			if err := iojson.WriteLine(w, c); err != nil {
				return fmt.Errorf("encode category: %w", err)
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tOPEN")
	for _, c := range cats {
		swatch := styles.CategoryStyle(c.Color).Render("■")
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s %s\t%d\n", c.ID, c.Name, swatch, c.Color, c.TaskCount)
	}
	return tw.Flush()
}

func writeStats(w io.Writer, s taskflow.Stats) {
	line := fmt.Sprintf("%d of %d completed (%d%%)", s.Completed, s.Total, s.Percent())
	_, _ = fmt.Fprintf(w, "\n%s\n", styles.TextMutedStyle.Render(line))
}

// flushNotifications prints what the bus collected for the last operation.
func flushNotifications(app *taskflow.App) {
	for _, n := range app.Notifications.Drain() {
		prefix := styles.TextMutedStyle.Render("•")
		switch n.Level {
		case notify.LevelSuccess:
			prefix = styles.TextSuccessStyle.Render("✔")
		case notify.LevelError:
			prefix = styles.TextErrorStyle.Render("✘")
		case notify.LevelWarning:
			prefix = styles.TextWarningStyle.Render("●")
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, n.Message)
	}
}
