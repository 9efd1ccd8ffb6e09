package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usersCount bool

// usersCmd lists accounts (admin token required)
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List backend accounts (admin)",
	RunE:  runUsers,
}

func init() {
	usersCmd.Flags().BoolVar(&usersCount, "count", false, "Print only the number of accounts")
}

func runUsers(cmd *cobra.Command, args []string) error {
	id, err := credential(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if usersCount {
		n, err := app.Client.CountUsers(ctx, id.AccessToken)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	users, err := app.Client.ListUsers(ctx, id.AccessToken)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tEMAIL\tNAME\tROLE")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Username, u.Email, u.FullName, u.Role)
	}
	return w.Flush()
}
