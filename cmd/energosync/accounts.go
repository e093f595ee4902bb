package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/logger"
)

func newAccountsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List provider accounts and how they are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := api.NewHTTPClient(appConfig.Provider, logger.Log)
			accounts, err := api.WithAutoAuth(ctx, client, client.Accounts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tREGION\tPROVIDER\tADDRESS\tSTATUS")
			for _, account := range accounts {
				status := "enabled"
				if appConfig.Integration.ForAccount(account.Code).Skip {
					status = "skipped"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					account.Code, account.API.Region, account.ProviderType, account.Address, status)
			}
			return w.Flush()
		},
	}
}
