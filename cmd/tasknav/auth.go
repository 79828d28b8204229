package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func credentialsCmd(use, short string, run func(c *client, cmd *cobra.Command, email, password string) error) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			return run(c, cmd, email, pw)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (default: TASKNAV_PASSWORD or stdin)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func signupCmd() *cobra.Command {
	return credentialsCmd("signup", "Create an account and sign in", func(c *client, cmd *cobra.Command, email, password string) error {
		identity, err := c.app.SignUp(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Signed in as %s\n", identity.Email)
		return nil
	})
}

func loginCmd() *cobra.Command {
	return credentialsCmd("login", "Sign in with email and password", func(c *client, cmd *cobra.Command, email, password string) error {
		identity, err := c.app.SignIn(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Signed in as %s\n", identity.Email)
		return nil
	})
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.app.SignOut(cmd.Context())
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireSession(); err != nil {
				return err
			}

			sidebar := c.app.Sidebar()
			fmt.Fprintln(c.out, sidebar.Email)
			return nil
		},
	}
}
