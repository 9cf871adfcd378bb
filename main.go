package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handlers"
	"backend/internal/metrics"
	"backend/internal/middleware"
	"backend/internal/notify"
	"backend/internal/payments"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureProductIndexes(db); err != nil {
		log.Printf("⚠️ product index warning: %v", err)
	}
	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("⚠️ user index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("⚠️ order index warning: %v", err)
	}
	if err := database.EnsureCouponIndexes(db); err != nil {
		log.Printf("⚠️ coupon index warning: %v", err)
	}
	if err := database.EnsureWebhookEventIndexes(db); err != nil {
		log.Printf("⚠️ webhook event index warning: %v", err)
	}

	reg := metrics.New()
	notifier := notify.New(config.AppEnv.KafkaBrokers, config.AppEnv.NotificationTopic)
	processor := payments.NewHMACProcessor(config.AppEnv.PaymentProvider, config.AppEnv.PaymentWebhookSecret)

	webhookProcessor := &payments.WebhookProcessor{
		Provider: processor,
		Orders:   &payments.MongoOrderStore{Orders: db.Collection("orders")},
		Events:   &payments.MongoEventLedger{Events: db.Collection("webhook_events")},
		Notifier: notifier,
	}

	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Webhook receipt stays outside auth: the signature over the raw body
	// is the authentication.
	r.POST("/payments/webhook", handlers.PaymentWebhook(webhookProcessor, reg))

	user := r.Group("/")
	user.Use(middleware.UserAuth(config.AppEnv.JWTSecret))
	{
		user.POST("/orders", handlers.PlaceOrder(db, config.AppEnv.HomeCountry, config.AppEnv.PaymentCurrency, notifier, reg))
		user.GET("/orders/mine", handlers.GetMyOrders(db))
		user.GET("/orders/:id", handlers.GetOrder(db))
		user.POST("/payments/intent", handlers.CreatePaymentIntent(db, processor, config.AppEnv.PaymentCurrency, reg))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(config.AppEnv.JWTSecret))
	{
		admin.GET("/orders", handlers.GetAllOrders(db))
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(db))
		admin.POST("/orders/:id/cancel", handlers.CancelOrder(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
