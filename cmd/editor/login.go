package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in and store the token pair",
	Long: `Signs in with a username and password. The password is read from
--password or, when absent, from the first line of stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			if password, err = readLine(cmd.InOrStdin()); err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}
		if err := env.client.Login(cmd.Context(), args[0], password); err != nil {
			return err
		}
		user, err := env.client.Me(cmd.Context())
		if err != nil {
			return err
		}
		if env.cfg.TokenStore != "redis" {
			env.logger.Warn("tokens are kept in memory and will not outlive this command; set token_store: redis")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.DisplayName())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		return env.client.Logout(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	loginCmd.Flags().String("password", "", "Password (read from stdin when empty)")
}
