package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"notespace/client/internal/content"
	"notespace/client/internal/workspace"
)

var rootDocCmd = &cobra.Command{
	Use:   "root",
	Short: "Show the root document, creating it on first use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		ws := workspace.New(env.client, env.logger)
		root, err := ws.Root(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\t%s\n", root.ID, root.Title)
		c, _ := content.Resolve(nil, root.Content, time.Now())
		for _, b := range c.Blocks {
			if b.Type != content.TypeNestedDocument {
				continue
			}
			ref, err := content.Payload[content.NestedDocumentData](b)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "  %s\t%s\n", ref.ID, ref.Title)
		}
		return nil
	},
}

var newDocCmd = &cobra.Command{
	Use:   "new <parent-id> [title]",
	Short: "Create a document nested in a parent",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		title := workspace.ChildTitle
		if len(args) == 2 {
			title = args[1]
		}
		index, _ := cmd.Flags().GetInt("index")
		doc, err := workspace.New(env.client, env.logger).CreateChild(cmd.Context(), content.ID(args[0]), index, title)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q\n", doc.ID, doc.Title)
		return nil
	},
}

var deleteDocCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its reference in the parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		return workspace.New(env.client, env.logger).Delete(cmd.Context(), content.ID(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(rootDocCmd)
	rootCmd.AddCommand(newDocCmd)
	rootCmd.AddCommand(deleteDocCmd)
	newDocCmd.Flags().Int("index", -1, "Index of the placeholder block in the parent to replace (default: append)")
}
