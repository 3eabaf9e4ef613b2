package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")

	cmd.RunE = opts.run(func(ctx context.Context, a *app, _ []string) error {
		password, err := readPassword(cmd, passwordStdin)
		if err != nil {
			return err
		}
		active, err := a.manager.Login(ctx, portalAuth.Credentials{Username: username, Password: password})
		if err != nil {
			return userError(err)
		}
		if a.json {
			return printJSON(a.out, portalAuth.Describe(active))
		}
		user := active.User()
		fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.Username, user.Role)
		return nil
	})
	return cmd
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if v := os.Getenv(envPassword); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no password: use --password-stdin or " + envPassword)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove it from storage",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = opts.run(func(ctx context.Context, a *app, _ []string) error {
		a.manager.Logout(ctx)
		if !a.json {
			fmt.Fprintln(a.out, "Signed out")
		}
		return nil
	})
	return cmd
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "reload the profile from the API first")

	cmd.RunE = opts.run(func(ctx context.Context, a *app, _ []string) error {
		if reload {
			if _, err := a.manager.FetchProfile(ctx); err != nil {
				return userError(err)
			}
		}
		desc := portalAuth.Describe(a.manager.Snapshot())
		if a.json {
			return printJSON(a.out, desc)
		}
		printWhoami(a.out, desc)
		return nil
	})
	return cmd
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var ifExpiring bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored tokens for new ones",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&ifExpiring, "if-expiring", false, "refresh only when the access token is about to expire")

	cmd.RunE = opts.run(func(ctx context.Context, a *app, _ []string) error {
		var err error
		if ifExpiring {
			err = a.manager.EnsureFresh(ctx)
		} else {
			err = a.manager.RefreshToken(ctx)
		}
		if err != nil {
			return userError(err)
		}
		if !a.json {
			fmt.Fprintln(a.out, "Session refreshed")
		}
		return nil
	})
	return cmd
}

// userError prefers the AuthError's user-facing message.
func userError(err error) error {
	var ae *portalAuth.AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return errors.New(ae.Message)
	}
	return err
}
