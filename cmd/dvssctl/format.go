package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	portalAuth "github.com/MrEthical07/portalAuth"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWhoami(w io.Writer, d portalAuth.Whoami) {
	if !d.Authenticated {
		fmt.Fprintln(w, "Not signed in")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "User\t%s (id %s)\n", d.Username, d.UserID)
	if d.FullName != "" {
		fmt.Fprintf(tw, "Name\t%s\n", d.FullName)
	}
	fmt.Fprintf(tw, "Role\t%s\n", d.Role)
	if len(d.Roles) > 0 {
		names := make([]string, 0, len(d.Roles))
		for _, r := range d.Roles {
			names = append(names, r.Name.String())
		}
		fmt.Fprintf(tw, "Roles\t%s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(tw, "Admin\t%t\n", d.Admin)
	fmt.Fprintf(tw, "Permissions\t%s\n", strings.Join(d.Permissions, ", "))
	_ = tw.Flush()
}

func printChecks(w io.Writer, results []checkResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tACTION\tREDIRECT\tTITLE")
	for _, r := range results {
		redirect := r.Redirect
		if redirect == "" {
			redirect = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Location, r.Action, redirect, r.Title)
	}
	_ = tw.Flush()
}
