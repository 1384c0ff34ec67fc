package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notespace/client/internal/content"
	"notespace/client/internal/workspace"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks <document-id>",
	Short: "List the tasks of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.client.GetDocument(cmd.Context(), content.ID(args[0]))
		if err != nil {
			return err
		}
		now := time.Now()
		c, _ := content.Resolve(nil, doc.Content, now)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BLOCK\tDONE\tDEADLINE\tTASK")
		for _, t := range content.Tasks(c) {
			deadline := ""
			if at, ok := t.Data.DeadlineAt(); ok {
				deadline = at.Local().Format("2006-01-02 15:04")
				if t.Data.Overdue(now) {
					deadline += " (overdue)"
				}
			}
			fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", t.Index, t.Data.Checked, deadline, t.Data.Text)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		summary := content.Summarize(c, now)
		fmt.Fprintf(cmd.OutOrStdout(), "%d/%d done (%d%%)\n", summary.Completed, summary.Total, summary.Percent())
		return nil
	},
}

var toggleTaskCmd = &cobra.Command{
	Use:   "toggle <document-id> <block-index>",
	Short: "Mark a task done, or open again with --open",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("block index: %w", err)
		}
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		reopen, _ := cmd.Flags().GetBool("open")
		ws := workspace.New(env.client, env.logger)
		if _, err := ws.ToggleTask(cmd.Context(), content.ID(args[0]), index, !reopen); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %d updated\n", index)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(toggleTaskCmd)
	toggleTaskCmd.Flags().Bool("open", false, "Mark the task as not done")
}
