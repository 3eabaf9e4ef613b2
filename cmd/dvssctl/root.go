package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "dvssctl",
		Short:         "Operator console for the DVSS-PPA primary API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (env "+envConfig+")")
	pf.StringVar(&opts.primary, "api", "", "primary API base URL (env "+envPrimary+")")
	pf.StringVar(&opts.ledger, "ledger-api", "", "ledger API base URL (env "+envLedger+")")
	pf.StringVarP(&opts.profile, "profile", "p", "", "session profile name (env "+envProfile+")")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print JSON")
	pf.IntVarP(&opts.verbosity, "verbose", "v", 0, "log verbosity; >0 also prints audit events")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newRefreshCmd(opts),
		newCheckCmd(opts),
		newRoutesCmd(opts),
		newFilterCmd(opts),
		newLedgerCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}
