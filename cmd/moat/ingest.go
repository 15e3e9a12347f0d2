package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srinivasgumdelli/moat/config"
)

func ingestCMD() *cobra.Command {
	var cfgPath string

	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Fetch articles from all enabled sources without storing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger := newLogger()
			sources := buildSources(cfg, logger)
			if len(sources) == 0 {
				return fmt.Errorf("no sources enabled")
			}

			total := 0
			for _, src := range sources {
				for _, topic := range cfg.Topics {
					articles, err := src.Fetch(ctx, topic)
					if err != nil {
						logger.Printf("%s/%s: %v", src.Name(), topic, err)
						continue
					}
					fmt.Printf("%-12s %-20s %d articles\n", src.Name(), topic, len(articles))
					for _, a := range articles {
						fmt.Printf("  - %s (%s)\n", a.Title, a.URL)
					}
					total += len(articles)
				}
			}
			fmt.Printf("total: %d articles\n", total)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
