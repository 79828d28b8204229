package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"task-navigator/internal/tracker"

	"github.com/spf13/cobra"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and change your tasks",
	}
	cmd.AddCommand(tasksListCmd())
	cmd.AddCommand(tasksAddCmd())
	cmd.AddCommand(tasksEditCmd())
	cmd.AddCommand(tasksCompleteCmd())
	return cmd
}

func printTasks(w io.Writer, tasks []tracker.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			task.ID.String()[:8],
			task.Status,
			task.Priority,
			task.DueDate.Local().Format("2006-01-02 15:04"),
			task.Title,
		)
	}
	tw.Flush()
}

func tasksListCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			view, err := c.app.MountTrack(cmd.Context())
			if err != nil {
				return err
			}
			view.Search(search)
			tasks, err := view.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			printTasks(c.out, tasks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only titles containing this text")
	return cmd
}

func tasksAddCmd() *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireSession(); err != nil {
				return err
			}

			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			task, err := c.app.Pipeline().Create(cmd.Context(), strings.Join(args, " "), dueDate)
			if err != nil {
				return err
			}
			printTasks(c.out, []tracker.Task{*task})
			return nil
		},
	}
	cmd.Flags().StringVarP(&due, "due", "d", "", "due date, e.g. 2026-10-20 or 2026-10-20T17:00:00Z")
	return cmd
}

func tasksEditCmd() *cobra.Command {
	var title, due string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's title or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireSession(); err != nil {
				return err
			}

			tasks, err := loadTasks(cmd.Context(), c)
			if err != nil {
				return err
			}
			task, err := findTask(tasks, args[0])
			if err != nil {
				return err
			}

			newTitle := task.Title
			if cmd.Flags().Changed("title") {
				newTitle = title
			}
			newDue := task.DueDate
			if cmd.Flags().Changed("due") {
				if newDue, err = parseDue(due); err != nil {
					return err
				}
			}

			updated, err := c.app.Pipeline().Edit(cmd.Context(), task.ID, newTitle, newDue)
			if err != nil {
				return err
			}
			printTasks(c.out, []tracker.Task{*updated})
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&due, "due", "d", "", "new due date")
	return cmd
}

func tasksCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "complete <id>",
		Aliases: []string{"done"},
		Short:   "Mark a task completed",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			view, err := c.app.MountTrack(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := view.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			task, err := findTask(tasks, args[0])
			if err != nil {
				return err
			}
			if !view.CanComplete(task) {
				fmt.Fprintf(c.out, "Already completed on %s\n", completedOn(task))
				return nil
			}
			return view.Complete(cmd.Context(), task.ID)
		},
	}
}

func completedOn(task tracker.Task) string {
	if task.CompletedAt == nil {
		return "an unknown date"
	}
	return task.CompletedAt.Local().Format(time.DateOnly)
}
