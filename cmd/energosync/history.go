package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/energosync/internal/database"
)

func newHistoryCommand(configPath *string) *cobra.Command {
	var (
		window      string
		aggregation string
		since       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history <unique_id>",
		Short: "Show recorded state history of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := database.ValidateQuery(window, aggregation); err != nil {
				return err
			}
			if since <= 0 {
				return errors.New("--since must be positive")
			}

			appConfig, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !appConfig.Database.Enabled {
				return errors.New("state history requires database.enabled")
			}

			repo, err := database.NewPostgresRepo(appConfig.Database.ConnectionString())
			if err != nil {
				return fmt.Errorf("failed to create repository: %w", err)
			}
			defer repo.Close()

			end := time.Now()
			data, err := repo.Query(cmd.Context(), args[0], end.Add(-since), end, window, aggregation)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "TIME\t%s\n", aggregation)
			for _, point := range data {
				fmt.Fprintf(w, "%s\t%.3f\n", point.Time.Format(time.RFC3339), point.Value)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&window, "window", "w", "1h", "time bucket: 1m, 5m, 1h or 1d")
	cmd.Flags().StringVarP(&aggregation, "aggregation", "a", "AVG", "MIN, MAX, AVG or SUM")
	cmd.Flags().DurationVarP(&since, "since", "s", 24*time.Hour, "how far back to query")

	return cmd
}
