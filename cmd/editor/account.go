package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"notespace/client/internal/api"
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account; a verification code is mailed to --email",
	Long: `Creates an account. The password is read from --password or, when absent,
from the first line of stdin. Confirm the address afterwards with verify.`,
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
		email, _ := cmd.Flags().GetString("email")
		first, _ := cmd.Flags().GetString("first-name")
		last, _ := cmd.Flags().GetString("last-name")
		err = env.client.Register(cmd.Context(), api.Registration{
			Username:        args[0],
			Email:           email,
			Password:        password,
			PasswordConfirm: password,
			FirstName:       first,
			LastName:        last,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created; check %s for the verification code\n", email)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <email> <code>",
	Short: "Confirm an email address with the mailed code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.client.VerifyEmail(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Email verified")
		return nil
	},
}

var resendCmd = &cobra.Command{
	Use:   "resend <email>",
	Short: "Mail a new verification code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.client.ResendVerification(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Verification code sent to %s\n", args[0])
		return nil
	},
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(registerCmd, verifyCmd)
	verifyCmd.AddCommand(resendCmd)
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().String("password", "", "Password (read from stdin when empty)")
	registerCmd.Flags().String("first-name", "", "First name")
	registerCmd.Flags().String("last-name", "", "Last name")
}
