// Package main runs the settlement workers: one worker pool per queue, each
// bound to its processor, served until the process receives a stop signal.
package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"splitpay/internal/config"
	"splitpay/internal/gateways/fiat"
	"splitpay/internal/gateways/treasury"
	"splitpay/internal/processors"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
)

func main() {
	config.LoadEnv()
	settings := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repositories.InitDB(settings.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	rdb, err := repositories.InitRedis(settings.RedisURL)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("failed to close redis connection: %v", err)
		}
	}()

	receiptRepo := repositories.NewReceiptRepository(db)
	installmentRepo := repositories.NewInstallmentRepository(db)
	refundRepo := repositories.NewRefundRepository(db)
	disputeRepo := repositories.NewDisputeRepository(db)
	evidenceRepo := repositories.NewEvidenceRepository(db)
	userRepo := repositories.NewUserRepository(db)

	gateway := fiat.NewStripeGateway(settings.StripeSecretKey, settings.StripePlatformAccount)
	chain, err := treasury.Dial(ctx, settings.ChainRPCURL, settings.ContractAddress,
		settings.WalletKey, settings.ChainID, treasury.DefaultPollConfig())
	if err != nil {
		log.Fatalf("failed to connect to the treasury contract: %v", err)
	}
	nftContract, err := chain.NFTContract(ctx)
	if err != nil {
		log.Fatalf("failed to read the treasury's pledge contract: %v", err)
	}
	log.Printf("treasury %s mints pledges on %s", settings.ContractAddress, nftContract.Hex())

	registry := queue.NewRegistry(rdb, queue.DefaultOptions())

	installmentsProcessor := processors.NewInstallmentsProcessor(
		installmentRepo, receiptRepo, userRepo, gateway, registry,
		settings.StripePlatformAccount, processors.DefaultPollConfig(),
	)
	refundsProcessor := processors.NewRefundsProcessor(
		receiptRepo, installmentRepo, refundRepo, userRepo, gateway, registry,
		processors.DefaultPollConfig(),
	)
	disputesProcessor := processors.NewDisputesProcessor(
		disputeRepo, installmentRepo, receiptRepo, userRepo, evidenceRepo,
		gateway, settings.HomeCountry, settings.ExtraFeeRate,
	)
	treasuryProcessor := processors.NewTreasuryProcessor(
		receiptRepo, installmentRepo, userRepo, chain, settings.BankingPaymentRail,
	)

	concurrency := config.GetIntEnv("WORKER_CONCURRENCY", 4)
	workers := map[string]*queue.Worker{
		queue.Installments: queue.NewWorker(registry.Get(queue.Installments), installmentsProcessor.Handle, concurrency),
		queue.Refunds:      queue.NewWorker(registry.Get(queue.Refunds), refundsProcessor.Handle, concurrency),
		queue.Disputes:     queue.NewWorker(registry.Get(queue.Disputes), disputesProcessor.Handle, concurrency),
		queue.Treasury:     queue.NewWorker(registry.Get(queue.Treasury), treasuryProcessor.Handle, concurrency),
	}

	var wg sync.WaitGroup
	for name, worker := range workers {
		wg.Add(1)
		go func(name string, worker *queue.Worker) {
			defer wg.Done()
			log.Printf("worker for queue '%s' started", name)
			worker.Run(ctx)
			log.Printf("worker for queue '%s' stopped", name)
		}(name, worker)
	}

	<-ctx.Done()
	log.Println("shutting down workers")
	wg.Wait()
}
