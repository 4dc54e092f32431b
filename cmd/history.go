package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tmirko/flight-price-tracker/internal/history"
	"github.com/tmirko/flight-price-tracker/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the previous-run prices a run would compare against",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		before, _ := cmd.Flags().GetString("before")
		cutoff := time.Now().UTC()
		if before != "" {
			t, err := time.Parse(time.RFC3339, before)
			if err != nil {
				return eris.Wrap(err, "history: parse --before")
			}
			cutoff = t
		}

		route, _ := cmd.Flags().GetString("route")
		if route == "" {
			route = cfg.RouteID()
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		prices := history.Lookup(ctx, st, route, cutoff)
		if len(prices) == 0 {
			fmt.Fprintln(os.Stderr, "No history found.")
			return nil
		}

		formatPriceMap(os.Stdout, prices, cfg.SerpAPI.Currency)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("before", "", "cutoff instant in RFC3339 (default now)")
	historyCmd.Flags().String("route", "", "route to inspect (default from config)")
	rootCmd.AddCommand(historyCmd)
}

// formatPriceMap writes prices ordered by outbound date to w.
func formatPriceMap(out io.Writer, prices history.PriceMap, currency string) {
	dates := make([]string, 0, len(prices))
	for d := range prices {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OUTBOUND\tCHEAPEST")
	for _, d := range dates {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", d, report.FormatMoney(prices[d], currency))
	}
	_ = w.Flush()
}
