package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notespace/client/internal/api"
	"notespace/client/internal/content"
	"notespace/client/internal/workspace"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents visible to the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		favorites, _ := cmd.Flags().GetBool("favorites")
		shared, _ := cmd.Flags().GetBool("shared")
		var docs []content.Document
		switch {
		case favorites && shared:
			return fmt.Errorf("--favorites and --shared cannot be combined")
		case favorites:
			docs, err = env.client.Favorites(cmd.Context())
		case shared:
			docs, err = env.client.SharedWithMe(cmd.Context())
		default:
			docs, err = env.client.ListDocuments(cmd.Context())
		}
		if err != nil {
			return err
		}
		return printDocuments(cmd.OutOrStdout(), docs)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find documents by title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := env.client.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printDocuments(cmd.OutOrStdout(), docs)
	},
}

func printDocuments(out io.Writer, docs []content.Document) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tOWNER\tFAVORITE\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", d.ID, d.Title, d.OwnerUsername, d.IsFavorite, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

var historyCmd = &cobra.Command{
	Use:   "history <document-id>",
	Short: "Show the change history of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.client.History(cmd.Context(), content.ID(args[0]))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tUSER\tACTION")
		for _, e := range entries {
			user := e.User.String()
			if e.UserDetails != nil {
				user = e.UserDetails.DisplayName()
			}
			action := e.ActionLabel
			if action == "" {
				action = e.ActionType
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04"), user, action)
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <document-id>",
	Short: "Show document statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := env.client.Statistics(cmd.Context(), content.ID(args[0]))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "created\t%s\n", s.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "editors\t%d\n", s.EditorCount)
		fmt.Fprintf(w, "nested documents\t%d\n", s.NestedDocumentsCount)
		fmt.Fprintf(w, "tasks\t%d/%d done (%.0f%%)\n", s.CompletedTasksCount, s.TasksCount, s.CompletionPercentage)
		if s.MostActiveUser != "" {
			fmt.Fprintf(w, "most active\t%s\n", s.MostActiveUser)
		}
		return w.Flush()
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <document-id>",
	Short: "Add a document to favorites, or remove it when it already is one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		ws := workspace.New(env.client, env.logger)
		favorite, err := ws.ToggleFavorite(cmd.Context(), content.ID(args[0]))
		if err != nil {
			return err
		}
		if favorite {
			fmt.Fprintln(cmd.OutOrStdout(), "added to favorites")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "removed from favorites")
		}
		return nil
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <document-id> <user-id>",
	Short: "Grant a user access to a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		role, _ := cmd.Flags().GetString("role")
		children, _ := cmd.Flags().GetBool("children")
		ws := workspace.New(env.client, env.logger)
		right, err := ws.Share(cmd.Context(), content.ID(args[0]), content.ID(args[1]), role, children)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "shared with %s as %s\n", accessHolder(right), right.Role)
		return nil
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list <document-id>",
	Short: "List who a document is shared with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		rights, err := env.client.AccessRights(cmd.Context(), content.ID(args[0]))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tROLE\tCHILDREN")
		for _, r := range rights {
			fmt.Fprintf(w, "%s\t%s\t%t\n", accessHolder(r), r.Role, r.IncludeChildren)
		}
		return w.Flush()
	},
}

func accessHolder(r api.AccessRight) string {
	if r.UserDetails != nil {
		return r.UserDetails.DisplayName()
	}
	return r.User.String()
}

func init() {
	rootCmd.AddCommand(listCmd, searchCmd, historyCmd, statsCmd, favoriteCmd, shareCmd)
	shareCmd.AddCommand(shareListCmd)
	listCmd.Flags().Bool("favorites", false, "Only list favorite documents")
	listCmd.Flags().Bool("shared", false, "Only list documents shared with you")
	shareCmd.Flags().String("role", "viewer", "Role to grant: viewer or editor")
	shareCmd.Flags().Bool("children", false, "Also grant access to nested documents")
}
