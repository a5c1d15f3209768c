package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/tonpay/pkg/logger"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage TonAPI webhooks",
}

var webhookSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Register the ingestion endpoint and subscribe accounts",
	Long: `Create a TonAPI webhook pointing at this service and subscribe it to account
transactions. Without --account the configured business wallet is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := subscribeWebhook(); err != nil {
			fmt.Fprintf(os.Stderr, "Webhook subscription failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var (
	webhookEndpoint string
	webhookAccounts []string
	webhookID       string
)

func subscribeWebhook() error {
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.LoggerWrapper()
	client := newIndexerClient(config.Indexer, log)

	accounts := webhookAccounts
	if len(accounts) == 0 && config.Webhook.BusinessWallet != "" {
		accounts = []string{config.Webhook.BusinessWallet}
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no account to subscribe: pass --account or set webhook.business_wallet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	id := webhookID
	if id == "" {
		endpoint := webhookEndpoint
		if endpoint == "" {
			if config.Server.BaseURL == "" {
				return fmt.Errorf("no endpoint: pass --endpoint or set http_server.base_url")
			}
			endpoint = config.Server.BaseURL + "/api/v1/webhooks/ton"
		}

		id, err = client.CreateWebhook(ctx, endpoint)
		if err != nil {
			return err
		}
		fmt.Println("Created webhook:", id)
	}

	if err := client.SubscribeAccounts(ctx, id, accounts); err != nil {
		return err
	}

	fmt.Printf("Webhook %s subscribed to %d account(s)\n", id, len(accounts))
	return nil
}

func init() {
	webhookSubscribeCmd.Flags().StringVar(&webhookEndpoint, "endpoint", "", "public URL TonAPI delivers to (default: <base_url>/api/v1/webhooks/ton)")
	webhookSubscribeCmd.Flags().StringSliceVar(&webhookAccounts, "account", nil, "account address to subscribe (repeatable)")
	webhookSubscribeCmd.Flags().StringVar(&webhookID, "id", "", "existing webhook id; skips creation")

	webhookCmd.AddCommand(webhookSubscribeCmd)
	rootCmd.AddCommand(webhookCmd)
}
