// Package routes wires the HTTP surface: webhook ingestion endpoints and the
// authenticated seller/buyer receipt operations.
package routes

import (
	"fmt"

	"splitpay/internal/config"
	"splitpay/internal/gateways/banking"
	"splitpay/internal/gateways/fiat"
	"splitpay/internal/handlers"
	"splitpay/internal/middleware"
	"splitpay/internal/models"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
	"splitpay/internal/services/receipts"
	"splitpay/internal/services/sellers"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupRoutes builds the repositories, gateways and services and registers
// every route on the app.
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, registry *queue.Registry, settings config.Settings) error {
	receiptRepo := repositories.NewReceiptRepository(db)
	installmentRepo := repositories.NewInstallmentRepository(db)
	refundRepo := repositories.NewRefundRepository(db)
	disputeRepo := repositories.NewDisputeRepository(db)
	evidenceRepo := repositories.NewEvidenceRepository(db)
	userRepo := repositories.NewUserRepository(db)

	gateway := fiat.NewStripeGateway(settings.StripeSecretKey, settings.StripePlatformAccount)
	bankingClient := banking.NewClient(settings.BankingAPIURL, settings.BankingAPIKey)
	verifier, err := banking.NewWebhookVerifier(settings.BankingWebhookPublicKey)
	if err != nil {
		return fmt.Errorf("setup routes: %w", err)
	}

	receiptsService := receipts.NewService(
		receiptRepo,
		installmentRepo,
		refundRepo,
		disputeRepo,
		evidenceRepo,
		userRepo,
		gateway,
		registry,
		settings.ChainID,
		settings.HomeCountry,
		settings.ExtraFeeRate,
	)

	healthHandler := handlers.NewHealthHandler(db, rdb)
	webhookHandler := handlers.NewWebhookHandler(
		receiptsService,
		registry,
		userRepo,
		installmentRepo,
		receiptRepo,
		gateway,
		verifier,
		settings.StripeWebhookSecretP,
		settings.StripeWebhookSecretC,
	)
	receiptsHandler := handlers.NewReceiptsHandler(receiptsService)

	sellersService := sellers.NewService(userRepo, bankingClient, settings.BankingPaymentRail, settings.BankingCurrency)
	sellersHandler := handlers.NewSellersHandler(sellersService)

	app.Get("/health", healthHandler.Check)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/platform", webhookHandler.Platform)
	webhooks.Post("/connect", webhookHandler.Connect)
	webhooks.Post("/banking", webhookHandler.Banking)

	authMiddleware := middleware.NewAuthMiddleware(settings.JWTSecret)
	api := app.Group("/api", authMiddleware.Handler)

	api.Get("/receipts", receiptsHandler.List)
	api.Get("/receipts/:id", receiptsHandler.Get)

	buyerOnly := middleware.RequireRole(models.RoleBuyer)
	api.Post("/receipts/:id/refund/request", buyerOnly, receiptsHandler.RequestRefund)

	sellerOnly := middleware.RequireRole(models.RoleSeller)
	api.Post("/receipts/:id/refund", sellerOnly, receiptsHandler.StartRefund)
	api.Post("/receipts/:id/refund/deny", sellerOnly, receiptsHandler.DenyRefund)
	api.Post("/receipts/:id/withdraw", sellerOnly, receiptsHandler.Withdraw)
	api.Post("/receipts/:id/evidences", sellerOnly, receiptsHandler.SubmitEvidences)
	api.Delete("/receipts/:id/evidences", sellerOnly, receiptsHandler.ResetEvidences)

	api.Get("/setup/external-accounts", sellerOnly, sellersHandler.ExternalAccounts)
	api.Get("/setup/onramp", sellerOnly, sellersHandler.OnRamp)
	api.Post("/setup/offramp", sellerOnly, sellersHandler.SetupOffRamp)
	api.Delete("/setup/offramp", sellerOnly, sellersHandler.ResetOffRamp)

	return nil
}
