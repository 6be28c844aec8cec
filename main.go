package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-svc/cache"
	"shop-svc/cart"
	"shop-svc/checkout"
	"shop-svc/config"
	"shop-svc/database"
	shopgrpc "shop-svc/grpc"
	"shop-svc/handlers"
	"shop-svc/inventory"
	"shop-svc/kafka"
	"shop-svc/ledger"
	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const serviceName = "shop-service"

type routeHandlers struct {
	auth     *handlers.AuthHandler
	users    *handlers.UserHandler
	products *handlers.ProductHandler
	orders   *handlers.OrderHandler
	reports  *handlers.ReportHandler
}

func setupRouter(h routeHandlers, jwtSecret []byte, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	router.POST("/auth/register", h.auth.Register)
	router.POST("/auth/login", h.auth.Login)

	router.GET("/products", h.products.GetProducts)
	router.GET("/products/:id", h.products.GetProduct)

	protected := router.Group("/", middleware.AuthMiddleware(jwtSecret))
	{
		protected.GET("/users/:id", h.users.GetUser)
		protected.POST("/users/:id/wallet/deposit", middleware.RequireRole(models.RoleAdmin), h.users.Deposit)

		protected.POST("/products", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), h.products.CreateProduct)
		protected.PUT("/products/:id", h.products.UpdateProduct)
		protected.DELETE("/products/:id", h.products.DeleteProduct)

		orders := protected.Group("/orders")
		orders.GET("/:id", h.orders.GetOrder)
		orders.GET("/:id/payment", h.orders.GetOrderPayment)
		orders.GET("/user/:userId", h.orders.GetUserOrders)
		orders.GET("/user/:userId/cart", h.orders.GetCart)
		orders.POST("/user/:userId/cart/items", h.orders.AddCartItem)
		orders.POST("/user/:userId/process-payment", h.orders.ProcessPayment)
		orders.DELETE("/user/:userId/products/:productId", h.orders.RemoveCartItem)
		orders.POST("/Product/:productId/Order/:orderId/quantity/:quantity/cart", h.orders.AddItemToOrder)

		reports := protected.Group("/reports", middleware.RequireRole(models.RoleAdmin))
		reports.GET("/board", h.reports.BoardStats)
		reports.GET("/monthly-sales", h.reports.MonthlySales)
		reports.GET("/top-products", h.reports.TopProducts)
		reports.GET("/low-stock", h.reports.LowStock)
		reports.GET("/top-spenders", h.reports.TopSpenders)
	}

	return router
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg := config.Load()

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(cfg.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.InitRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()
	productCache := cache.NewProductCache(redisClient, cfg.CacheTTL)

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	sessions := repository.NewSessionFactory(db)
	wallet := ledger.New(cfg.AllowOverdraft)
	checkoutOpts := []checkout.Option{checkout.WithProductCache(productCache)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// Kafka is optional; checkout works without event publication.
	if cfg.Kafka.Enabled {
		producer, err := kafka.InitProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		publisher := kafka.NewPublisher(producer, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		checkoutOpts = append(checkoutOpts, checkout.WithPublisher(publisher))

		consumer, err := kafka.InitConsumer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
		}
		defer consumer.Close()
		inbox := cache.NewNotificationInbox(redisClient, cfg.NotificationInboxSize)
		notifications := kafka.NewNotificationConsumer(consumer, cfg.Kafka.Topic, inbox, logger)
		g.Go(func() error {
			if err := notifications.Run(gctx); err != nil {
				logger.Error("Kafka consumer error", zap.Error(err))
			}
			return nil
		})
	}

	carts := cart.NewService(sessions, logger)
	checkoutService := checkout.NewService(sessions, wallet, inventory.NewGuard(), cfg.CheckoutTimeout, logger, checkoutOpts...)

	router := setupRouter(routeHandlers{
		auth:     handlers.NewAuthHandler(sessions, []byte(cfg.JWTSecret), cfg.JWTTTL, logger),
		users:    handlers.NewUserHandler(sessions, wallet, logger),
		products: handlers.NewProductHandler(sessions, productCache, cfg.BreakerMaxFailures, logger),
		orders:   handlers.NewOrderHandler(carts, checkoutService, logger),
		reports:  handlers.NewReportHandler(sessions, cfg.LowStockThreshold, logger),
	}, []byte(cfg.JWTSecret), logger)

	restSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	g.Go(func() error {
		logger.Info("Shop Service REST API started", zap.String("addr", cfg.HTTPAddr))
		if err := restSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	shopgrpc.RegisterCheckoutServer(grpcServer, handlers.NewCheckoutService(checkoutService, logger))
	g.Go(func() error {
		logger.Info("Shop Service gRPC server started", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(grpcListener)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received. Exiting...")
		gracefulShutdown(restSrv, grpcServer, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Shop Service stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Shop Service exited gracefully")
}

// gracefulShutdown stops both servers; deferred closers in main release the
// database, Redis, Kafka and tracing afterwards.
func gracefulShutdown(restSrv *http.Server, grpcServer *grpc.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		logger.Error("REST server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("REST server stopped gracefully")
	}

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped gracefully")
}
