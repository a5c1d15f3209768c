package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/tonpay/internal/payment"
	"github.com/frahmantamala/tonpay/internal/transport"
	"github.com/frahmantamala/tonpay/internal/transport/rest"
	"github.com/frahmantamala/tonpay/internal/transport/swagger"
	"github.com/frahmantamala/tonpay/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server serving payment verification, purchase records and the TonAPI webhook`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	*core
	Router *chi.Mux
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	base := transport.NewBaseHandler(deps.Logger)

	healthHandler := rest.NewHealthHandler(deps.DB.DB, deps.Pending)
	if deps.Cache != nil {
		healthHandler.WithComponent("redis", deps.Cache)
	}

	paymentHandler := payment.NewHandler(base, payment.NewService(deps.Repository, deps.Logger), deps.Engine, deps.Logger)
	webhookHandler := payment.NewWebhookHandler(base, deps.Engine, deps.Config.Webhook.BusinessWallet, deps.Logger)

	rest.RegisterAllRoutes(deps.Router, rest.RouterConfig{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		OpenAPIPath:    deps.Config.Server.OpenAPIPath,
		WebhookToken:   deps.Config.Webhook.AuthToken,
	}, healthHandler, paymentHandler, webhookHandler, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.LoggerWrapper()
	if !checkOpenAPIDocument(config.Server.OpenAPIPath, log) {
		config.Server.OpenAPIPath = ""
	}

	c, err := initCore(config, log)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		core:   c,
		Router: chi.NewRouter(),
	}, nil
}

// checkOpenAPIDocument reports whether the docs routes can be served.
func checkOpenAPIDocument(path string, log *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := swagger.LoadDocument(ctx, path); err != nil {
		log.Warn("openapi document unavailable, docs routes disabled", "path", path, "error", err)
		return false
	}
	return true
}

func init() {
	rootCmd.AddCommand(httpServerCmd)
}
