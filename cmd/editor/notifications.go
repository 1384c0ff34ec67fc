package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notespace/client/internal/content"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List notifications of the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.client.Notifications(cmd.Context())
		if err != nil {
			return err
		}
		unreadOnly, _ := cmd.Flags().GetBool("unread")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFROM\tTYPE\tREAD\tCREATED")
		for _, n := range items {
			if unreadOnly && n.IsRead {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", n.ID, n.SenderUsername, n.Type, n.IsRead, n.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var markReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		return env.client.MarkNotificationRead(cmd.Context(), content.ID(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(markReadCmd)
	notificationsCmd.Flags().Bool("unread", false, "Only list unread notifications")
}
