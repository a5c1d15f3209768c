package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	paymentPostgres "github.com/frahmantamala/tonpay/internal/payment/postgres"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample pending payments",
	Long:  `Insert pending payments with random transaction hashes for exercising the verifier and the reconciler in development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}
		repository := paymentPostgres.NewPaymentRepository(gormDB)

		ctx := context.Background()
		for i := 0; i < seedCount; i++ {
			hash, err := randomHash()
			if err != nil {
				log.Fatalf("failed to generate hash: %v", err)
			}

			p := &payment.Payment{
				TransactionHash: hash,
				PayerAddress:    "UQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG",
				ItemID:          fmt.Sprintf("template-%d", i+1),
				Amount:          decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(int64(i + 1))),
				Status:          payment.StatusPending,
			}
			if err := repository.Create(ctx, p); err != nil {
				if stderrors.Is(err, errors.ErrDuplicateTransaction) {
					continue
				}
				log.Fatalf("failed to insert payment: %v", err)
			}
			fmt.Println("Seeded pending payment:", hash)
		}
	},
}

func randomHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 3, "number of pending payments to insert")

	rootCmd.AddCommand(seedCmd)
}
