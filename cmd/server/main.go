package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-ledger/internal/adapter/handler"
	"github.com/rl1809/inventory-ledger/internal/adapter/notify"
	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/config"
	"github.com/rl1809/inventory-ledger/internal/core/service"
	"github.com/rl1809/inventory-ledger/internal/logger"
	"github.com/rl1809/inventory-ledger/internal/metrics"
	"github.com/rl1809/inventory-ledger/internal/migration"
	"github.com/rl1809/inventory-ledger/internal/port"
	"github.com/rl1809/inventory-ledger/internal/telemetry"
	"github.com/rl1809/inventory-ledger/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	bootLog := logger.New(logCfg)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       config.ServiceName,
		ServiceVersion:    config.ServiceVersion,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("failed to set up telemetry", zap.Error(err))
	}

	if cfg.Telemetry.Enabled {
		logCfg.OTelScope = config.ServiceName
	}
	log := logger.New(logCfg, zap.String("service", config.ServiceName), zap.String("env", cfg.App.Env))
	defer func() { _ = log.Sync() }()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping mysql", zap.Error(err))
	}
	log.Info("connected to mysql", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.DSN(), log); err != nil {
			log.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var engineOpts []service.Option

	// Initialize Redis
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		engineOpts = append(engineOpts, service.WithCache(storage.NewRedisAdapter(rdb, cfg.Redis.ItemTTL)))
	}

	// Notification delivery
	var sink port.NotificationSink
	if cfg.Kafka.Enabled {
		writer := notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout)
		sink = notify.NewKafkaSink(writer, log)
		log.Info("notifications go to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		sink = notify.NewLogSink(log)
		log.Info("notifications go to the log")
	}

	recorder := metrics.NewRecorder()

	dispatcher := service.NewNotificationDispatcher(sink, service.DispatcherConfig{
		QueueSize:   cfg.Notification.QueueSize,
		Workers:     cfg.Notification.Workers,
		MaxAttempts: cfg.Notification.MaxAttempts,
		Timeout:     cfg.Notification.Timeout,
		RetryDelay:  cfg.Notification.RetryDelay,
	}, log, service.WithDispatcherMetrics(recorder))
	dispatcher.Start()

	engineOpts = append(engineOpts, service.WithMetrics(recorder))
	engine := service.NewInventoryEngine(
		storage.NewMySQLAdapter(db),
		dispatcher,
		service.Config{AdminNotificationAddress: cfg.Notification.AdminAddress},
		log,
		engineOpts...,
	)
	auth := handler.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AdminRole)

	// Initialize gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(handler.AuthInterceptor(auth)))
		handler.RegisterInventoryServiceServer(grpcServer, handler.NewGRPCHandler(engine, log))

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
		}
		go func() {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP server
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.NewHTTPHandler(engine, auth, log), config.ServiceName, recorder.Handler())
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
	}

	// Drain queued notifications before closing the sink
	dispatcher.Close()
	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("failed to close notification sink", zap.Error(err))
		}
	}
	log.Info("notification workers stopped")

	if rdb != nil {
		_ = rdb.Close()
	}
	_ = db.Close()
	log.Info("connections closed")

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("telemetry shutdown failed", zap.Error(err))
	}
}

// migrateUp applies pending migrations on a dedicated connection, which the
// migrator closes when done.
func migrateUp(dsn string, log *zap.Logger) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}

	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	return m.Up()
}
