package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/order-service/internal/app"
	"github.com/linemk/order-service/internal/app/handlers"
	"github.com/linemk/order-service/internal/config"
	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-service/internal/lib/logger"
	"github.com/linemk/order-service/internal/lib/logger/handlers/urllog"
	"github.com/linemk/order-service/internal/service"
	"github.com/linemk/order-service/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	webhookRepo := storage.NewWebhookEventRepository(application.DB)

	// адаптер платёжного шлюза собирается явно и передаётся сервисам:
	// никакого процессо-глобального ленивого синглтона
	gatewayClient := gateway.NewStripeClient(application.Logger, cfg.Payment)

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	cartService := service.NewCartService(application.Logger, application.DB, cartRepo)
	checkoutService := service.NewCheckoutService(application.Logger, application.DB, cartRepo, orderRepo, productRepo)
	orderService := service.NewOrderService(application.Logger, orderRepo)
	paymentService := service.NewPaymentService(application.Logger, application.DB, orderRepo, gatewayClient)
	webhookService := service.NewWebhookService(
		application.Logger,
		application.DB,
		orderRepo,
		webhookRepo,
		cfg.Payment.WebhookSecret,
		cfg.Payment.WebhookTolerance,
		cfg.Payment.AllowRetryAfterFailure,
	)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))
	// вебхуки процессинга: без JWT, аутентичность обеспечивает подпись по телу
	router.Post("/api/payments/webhook", handlers.WebhookHandler(application.Logger, webhookService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret)
		r.Use(jwtMW)
		// корзина
		r.Get("/api/cart", handlers.GetCartHandler(application.Logger, cartService))
		r.Post("/api/cart/items", handlers.AddCartItemHandler(application.Logger, cartService))
		r.Put("/api/cart/items/{itemID}", handlers.UpdateCartItemHandler(application.Logger, cartService))
		r.Delete("/api/cart/items/{itemID}", handlers.RemoveCartItemHandler(application.Logger, cartService))
		r.Delete("/api/cart", handlers.ClearCartHandler(application.Logger, cartService))
		// оформление и заказы
		r.Post("/api/checkout", handlers.CheckoutHandler(application.Logger, checkoutService))
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Get("/api/orders/{orderID}", handlers.GetOrderHandler(application.Logger, orderService))
		r.Post("/api/orders/{orderID}/cancel", handlers.CancelOrderHandler(application.Logger, paymentService))
		// платежи
		r.Post("/api/payments/create-intent", handlers.CreateIntentHandler(application.Logger, paymentService))
		r.Get("/api/payments/{paymentIntentID}", handlers.PaymentStatusHandler(application.Logger, paymentService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
