package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/core/events"
	"github.com/frahmantamala/tonpay/internal/indexer"
	"github.com/frahmantamala/tonpay/internal/notify"
	"github.com/frahmantamala/tonpay/internal/payment"
	paymentPostgres "github.com/frahmantamala/tonpay/internal/payment/postgres"
	paymentRedis "github.com/frahmantamala/tonpay/internal/payment/redis"
)

// core holds what every long-running command needs to verify payments.
type core struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Repository payment.RepositoryAPI
	Pending    *paymentPostgres.PendingLister
	Indexer    *indexer.Client
	EventBus   *events.EventBus
	Notifier   *notify.NATSNotifier
	Cache      *paymentRedis.StatusCache
	Engine     *payment.Engine
	Logger     *slog.Logger
}

func initCore(config *internal.Config, logger *slog.Logger) (*core, error) {
	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	c := &core{
		Config:     config,
		DB:         db,
		Gorm:       gormDB,
		Repository: paymentPostgres.NewPaymentRepository(gormDB),
		Pending:    paymentPostgres.NewPendingLister(db),
		Indexer:    newIndexerClient(config.Indexer, logger),
		EventBus:   events.NewEventBus(logger),
		Logger:     logger,
	}

	c.Notifier, err = notify.NewNATSNotifier(notify.Config{
		URL:     config.Events.NATSURL,
		Subject: config.Events.Subject,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	payment.NewEventHandler(c.Notifier, logger).RegisterEventHandlers(c.EventBus)

	opts := []payment.EngineOption{
		payment.WithEventPublisher(c.EventBus),
		payment.WithLookupTimeout(lookupTimeout(config.Indexer)),
	}
	if config.Cache.Enabled {
		c.Cache = paymentRedis.NewStatusCache(paymentRedis.Config{
			Addr:     config.Cache.Addr,
			Password: config.Cache.Password,
			DB:       config.Cache.DB,
			TTL:      config.Cache.TTL,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := c.Cache.Ping(ctx); err != nil {
			logger.Warn("status cache unreachable, continuing without it", "addr", config.Cache.Addr, "error", err)
		}
		cancel()
		opts = append(opts, payment.WithStatusCache(c.Cache))
	}

	c.Engine = payment.NewEngine(c.Repository, c.Indexer, logger, opts...)
	return c, nil
}

// Close drains pending event deliveries and releases connections.
func (c *core) Close(ctx context.Context) {
	if err := c.EventBus.Drain(ctx); err != nil {
		c.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	c.Notifier.Close()
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Error("status cache close error", "error", err)
		}
	}
	if err := c.DB.Close(); err != nil {
		c.Logger.Error("database close error", "error", err)
	}
}

// lookupTimeout covers every attempt the indexer client may make plus the
// store round trips around it.
func lookupTimeout(cfg internal.IndexerConfig) time.Duration {
	attempts := time.Duration(cfg.RetryCount + 1)
	return cfg.RequestTimeout*attempts + cfg.RetryWait*attempts + 5*time.Second
}

func newIndexerClient(cfg internal.IndexerConfig, logger *slog.Logger) *indexer.Client {
	return indexer.NewClient(indexer.Config{
		BaseURL:        cfg.BaseURL,
		StreamingURL:   cfg.StreamingURL,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.RequestTimeout,
		RetryCount:     cfg.RetryCount,
		RetryWait:      cfg.RetryWait,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}, logger)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}
