package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MrEthical07/portalAuth/authclient"
	"github.com/MrEthical07/portalAuth/permission"
	"github.com/spf13/cobra"
)

type checkResult struct {
	Location string `json:"location"`
	Action   string `json:"action"`
	Redirect string `json:"redirect,omitempty"`
	Route    string `json:"route,omitempty"`
	Title    string `json:"title,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <location>...",
		Short: "Ask the route guard what happens when navigating to each location",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = opts.run(func(_ context.Context, a *app, args []string) error {
		state := a.manager.Snapshot()
		results := make([]checkResult, 0, len(args))
		for _, loc := range args {
			out, err := a.table.Navigate(loc, state)
			if err != nil {
				return err
			}
			a.manager.ObserveNavigation(out.Action)
			results = append(results, checkResult{
				Location: loc,
				Action:   out.Action.Kind.String(),
				Redirect: out.Location,
				Route:    out.Route.Name,
				Title:    out.Title(),
				NotFound: out.NotFound,
			})
		}
		if a.json {
			return printJSON(a.out, results)
		}
		printChecks(a.out, results)
		return nil
	})
	return cmd
}

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the route table",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = opts.run(func(_ context.Context, a *app, _ []string) error {
		routes := a.table.Routes()
		if a.json {
			return printJSON(a.out, routes)
		}
		for _, r := range routes {
			fmt.Fprintln(a.out, r)
		}
		return nil
	})
	return cmd
}

func newFilterCmd(opts *rootOptions) *cobra.Command {
	var roleTag string
	cmd := &cobra.Command{
		Use:   "filter [file]",
		Short: "Project a JSON record or array to the fields a role may see",
		Long: "Reads a JSON object or array of objects from file or stdin and prints\n" +
			"the projection for --role, or for the signed-in session's role.",
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&roleTag, "role", "", "role to project for instead of the session's")

	cmd.RunE = opts.run(func(_ context.Context, a *app, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		doc, err := io.ReadAll(in)
		if err != nil {
			return err
		}

		role, err := a.projectionRole(roleTag)
		if err != nil {
			return err
		}
		out, err := a.policy.FilterJSON(doc, role)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(out))
		return err
	})
	return cmd
}

func (a *app) projectionRole(tag string) (permission.Role, error) {
	if tag != "" {
		return permission.ParseRole(tag)
	}
	active, ok := a.manager.Snapshot().Active()
	if !ok {
		return 0, nil
	}
	roles := []permission.Role{active.User().Role}
	for _, r := range active.Roles() {
		roles = append(roles, r.Name)
	}
	role, _ := a.policy.Role(roles...)
	return role, nil
}

func newLedgerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger <path>",
		Short: "GET a ledger API path with the session token",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = opts.run(func(ctx context.Context, a *app, args []string) error {
		var out any
		if err := authclient.NewJSON(a.ledger, a.manager).Get(ctx, args[0], nil, &out); err != nil {
			return userError(err)
		}
		return printJSON(a.out, out)
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dvssctl %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

