package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raaihank/grammar-sentinel/internal/client"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the grammar service and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("GRAMMAR_SENTINEL_PASSWORD")
		}

		in := bufio.NewReader(cmd.InOrStdin())
		if username == "" {
			if username, err = prompt(cmd, in, "Username: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = prompt(cmd, in, "Password: "); err != nil {
				return err
			}
		}

		sessions, err := a.sessions()
		if err != nil {
			return err
		}
		if err := sessions.Login(cmd.Context(), username, password); err != nil {
			if errors.Is(err, client.ErrInvalidCredentials) {
				return fmt.Errorf("invalid credentials")
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		sessions, err := a.sessions()
		if err != nil {
			return err
		}
		if err := sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
	loginCmd.Flags().StringP("username", "u", "", "Account username")
	loginCmd.Flags().StringP("password", "p", "", "Account password (or GRAMMAR_SENTINEL_PASSWORD)")
}
