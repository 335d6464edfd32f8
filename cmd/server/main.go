// Package main is the API entry point. It connects postgres and redis, wires
// the routes and serves the webhook ingestion endpoints plus the seller/buyer
// receipt operations.
package main

import (
	"log"
	"time"

	"splitpay/internal/config"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
	"splitpay/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadEnv()
	settings := config.Load()

	db, err := repositories.InitDB(settings.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("failed to close database connection: %v", err)
			}
		}
	}()

	rdb, err := repositories.InitRedis(settings.RedisURL)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("failed to close redis connection: %v", err)
		}
	}()

	registry := queue.NewRegistry(rdb, queue.DefaultOptions())

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use("/api", limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	}))

	if err := routes.SetupRoutes(app, db, rdb, registry, settings); err != nil {
		log.Fatalf("failed to set up routes: %v", err)
	}

	log.Fatal(app.Listen(":" + config.GetEnv("PORT", "3000")))
}
