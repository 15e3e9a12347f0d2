package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/store"
)

func statsCMD() *cobra.Command {
	var cfgPath string
	var limit int

	var stats = &cobra.Command{
		Use:   "stats",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			st, err := store.Open(dsn)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			runs, err := st.RecentRuns(context.Background(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tFETCHED\tDEDUPED\tCLUSTERS\tTOKENS\tCOST")
			for _, r := range runs {
				duration := ""
				if r.FinishedAt != nil {
					duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%d\t%s\t%s (%s)\t%d\t%d\t%d\t%d\t$%.4f\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Status, duration,
					r.ArticlesFetched, r.ArticlesAfterDedup, r.ClustersFormed,
					r.TokensUsed, r.CostUSD)
			}
			return w.Flush()
		},
	}
	stats.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	stats.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return stats
}
