package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tmirko/flight-price-tracker/internal/model"
	"github.com/tmirko/flight-price-tracker/internal/report"
	"github.com/tmirko/flight-price-tracker/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored search runs",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored search runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		route, _ := cmd.Flags().GetString("route")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListSearchRuns(ctx, store.RunFilter{Route: route, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("route", "", "filter by route (e.g. LHR-JFK)")
	runsListCmd.Flags().Int("limit", 50, "max number of rows to display")

	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of search runs to w.
func formatRunsList(out io.Writer, runs []model.SearchRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tOBSERVED\tROUTE\tOUTBOUND\tCHEAPEST\tERROR")
	_, _ = fmt.Fprintln(w, "---\t--------\t-----\t--------\t--------\t-----")

	for _, r := range runs {
		price := "-"
		if r.CheapestPrice != nil {
			price = report.FormatMoney(*r.CheapestPrice, r.Currency)
		}

		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
			if len(errMsg) > 40 {
				errMsg = errMsg[:37] + "..."
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.RunID),
			r.ObservedAt.UTC().Format("2006-01-02 15:04"),
			r.Route,
			r.OutboundDate,
			price,
			errMsg,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
