package cmd

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/controller"
	paymentgrpc "github.com/ferreiradluan/Ze-da-Fruta-sub002/app/grpc"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/lock"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/metrics"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/repository"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/service"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	_ "modernc.org/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the payments service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(app.paymentService)
	grpcPaymentServer := paymentgrpc.NewServer(app.paymentService)

	e := setupHTTPServer(paymentController, app.metrics, app.cfg.App.APIKey)
	grpcSrv, lis := setupGRPCServer(app.cfg, grpcPaymentServer)

	go func() {
		httpAddr := net.JoinHostPort(app.cfg.HTTP.Host, app.cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController, m *metrics.Metrics, apiKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"request_id": v.RequestID,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(recordHTTPMetrics(m))

	e.GET("/health", paymentController.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	var internal []echo.MiddlewareFunc
	if key := strings.TrimSpace(apiKey); key != "" {
		internal = append(internal, requireAPIKey(key))
	}
	e.POST("/checkout", paymentController.StartCheckout, internal...)
	e.GET("/orders/:orderId/payment", paymentController.GetPaymentByOrder, internal...)
	e.GET("/orders/:orderId/payment/events", paymentController.ListPaymentEvents, internal...)
	e.POST("/orders/:orderId/refund", paymentController.InitiateRefund, internal...)

	// Processor webhooks authenticate by signature only.
	e.POST("/webhooks/:provider", paymentController.HandleProviderWebhook)

	return e
}

func requireAPIKey(apiKey string) echo.MiddlewareFunc {
	return echomiddleware.KeyAuthWithConfig(echomiddleware.KeyAuthConfig{
		KeyLookup: "header:X-API-Key",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		},
	})
}

func recordHTTPMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			status := ctx.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			m.RecordHTTPRequest(ctx.Request().Method, ctx.Path(), status, time.Since(start))
			return err
		}
	}
}

func setupGRPCServer(cfg *config.Config, paymentServer *paymentgrpc.Server) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen for gRPC")
	}

	grpcSrv := grpc.NewServer(
		grpc.ForceServerCodec(paymentgrpc.JSONCodec{}),
		grpc.ChainUnaryInterceptor(
			paymentgrpc.RecoveryInterceptor(),
			paymentgrpc.RequestIDInterceptor(),
			paymentgrpc.LoggingInterceptor(),
			paymentgrpc.APIKeyInterceptor(cfg.App.APIKey),
		),
	)
	paymentgrpc.RegisterPaymentsServiceServer(grpcSrv, paymentServer)

	return grpcSrv, lis
}

type paymentApp struct {
	cfg            *config.Config
	metrics        *metrics.Metrics
	paymentService *service.PaymentService
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustCreateLocker(cfg *config.Config) (lock.Locker, func()) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return lock.NewKeyedMutex(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}

	locker := lock.NewRedisLocker(client, lock.RedisConfig{
		Prefix: cfg.App.ServiceName + ":lock:",
		TTL:    cfg.Redis.LockTTL,
	})
	return locker, func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
}

func mustCreatePaymentService() (*paymentApp, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)

	if cfg.Database.Driver == repository.DriverSQLite {
		if err := repository.Migrate(context.Background(), db, cfg.Database.Driver); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to migrate sqlite database")
		}
	}

	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)
	callbackRepo := repository.NewPaymentCallbackRepository(db)

	stripeProvider := provider.NewStripeProvider(provider.StripeConfig{
		SecretKey:          cfg.Stripe.SecretKey,
		WebhookSecret:      cfg.Stripe.WebhookSecret,
		SignatureTolerance: cfg.Stripe.SignatureTolerance,
		HTTPTimeout:        cfg.Stripe.HTTPTimeout,
		APIBaseURL:         cfg.Stripe.APIBaseURL,
		SuccessURL:         cfg.Checkout.SuccessURL,
		CancelURL:          cfg.Checkout.CancelURL,
	})
	guardedStripe := provider.NewBreakerProvider(stripeProvider, provider.BreakerConfig{
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.OpenTimeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	})

	locker, closeLocker := mustCreateLocker(cfg)
	m := metrics.New(strings.ReplaceAll(cfg.App.ServiceName, "-", "_"))

	paymentService := service.NewPaymentService(
		paymentRepo,
		eventRepo,
		callbackRepo,
		provider.NewRegistry(guardedStripe),
		locker,
		m,
		cfg.Checkout,
		cfg.Payments,
	)

	cleanup := func() {
		closeLocker()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return &paymentApp{cfg: cfg, metrics: m, paymentService: paymentService}, cleanup
}
