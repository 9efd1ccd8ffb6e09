package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd lists saved results of the signed-in user
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved results of the signed-in user",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the last N results")
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := credential(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	items, err := app.Client.History(ctx, id.Username, id.AccessToken)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved results")
		return nil
	}
	if historyLimit > 0 && len(items) > historyLimit {
		items = items[len(items)-historyLimit:]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tDISEASE\tPROBABILITY\tIMAGE")
	for _, it := range items {
		when := it.Timestamp
		if ts, err := time.Parse(time.RFC3339, it.Timestamp); err == nil {
			when = ts.Local().Format("2006-01-02 15:04")
		}
		prob := "-"
		for _, d := range it.PredictionData.TopDiseases {
			if d.Disease == it.Disease {
				prob = fmt.Sprintf("%.1f%%", d.Probability*100)
				break
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", when, it.Disease, prob, it.ImageURL)
	}
	return w.Flush()
}
