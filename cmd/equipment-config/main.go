package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"skyfire-equipment/common/database"
	"skyfire-equipment/common/logger"
	"skyfire-equipment/common/mqtt"
	rediscommon "skyfire-equipment/common/redis"
	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/catalog"
	"skyfire-equipment/internal/config"
	httpapi "skyfire-equipment/internal/http"
	"skyfire-equipment/internal/notify"
	"skyfire-equipment/internal/repository"
	"skyfire-equipment/internal/service"
	"skyfire-equipment/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "equipment-config")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 存储：数据库不可用时回退到内存
	var (
		db        *sql.DB
		cfgStore  repository.ConfigStore
		revisions repository.RevisionsRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for equipment-config", zap.String("dsn", cfg.Database.Redacted()))
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if db != nil {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			log.Fatal("failed to ensure schema", zap.Error(err))
		}
		cfgStore = repository.NewPostgresConfigStore(db, log)
		revisions = repository.NewPostgresRevisionsRepository(db)
		defer database.Close(db)
	} else {
		cfgStore = repository.NewMemoryConfigStore()
		revisions = repository.NewMemoryRevisionsRepository()
	}

	var (
		redisClient *redis.Client
		kv          store.KV
	)
	if cfg.RedisEnabled {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
			_ = rediscommon.Close(redisClient)
			redisClient = nil
		}
	}
	if redisClient != nil {
		kv = store.NewRedisKV(redisClient)
		defer rediscommon.Close(redisClient)
	} else {
		kv = store.NewMemoryKV()
	}

	// 设备目录 + 公用事业需求表
	opts := catalog.Options{
		BaseURL:    cfg.Catalog.BaseURL,
		Timeout:    cfg.Catalog.Timeout,
		RatePerSec: cfg.Catalog.RatePerSec,
		Burst:      cfg.Catalog.Burst,
		RetryCount: cfg.Catalog.RetryCount,
	}
	equipmentCatalog := catalog.NewHTTPCatalog(opts, log)
	requirements := catalog.NewCachedRequirements(
		catalog.NewHTTPUtilityRequirements(opts, log), kv, cfg.Catalog.RequirementsTTL, log)

	configs, err := bos.DefaultUtilityConfigs()
	if err != nil {
		log.Fatal("failed to load utility bos configs", zap.Error(err))
	}
	engine := bos.NewEngine(configs, equipmentCatalog, requirements, log)

	// 变更事件
	var publishers []notify.Publisher
	if cfg.Notify.MQTTEnabled {
		client, err := mqtt.NewClient(&cfg.Notify.MQTT, log)
		if err != nil {
			log.Warn("mqtt unavailable, change events not published over mqtt", zap.Error(err))
		} else {
			defer client.Disconnect()
			publishers = append(publishers, notify.NewMQTTPublisher(client, cfg.Notify.Topic))
		}
	}
	if cfg.Notify.StreamEnabled && redisClient != nil {
		publishers = append(publishers, notify.NewStreamPublisher(
			notify.RedisStreamWriter(redisClient), cfg.Notify.Stream, cfg.Notify.StreamMaxLen))
	}
	publisher := notify.NewMulti(log, publishers...)
	log.Info("change event publishers configured", zap.Int("count", publisher.Len()))

	projects := service.NewProjectService(service.Dependencies{
		Store:     cfgStore,
		Revisions: revisions,
		Engine:    engine,
		Publisher: publisher,
		MaxPasses: cfg.DerivationMaxPasses,
		Logger:    log,
	})

	router := httpapi.NewRouter(log)
	router.RegisterProjectRoutes(httpapi.NewProjectHandler(projects, log))
	router.RegisterOpsRoutes(configs, requirements)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	if err := srv.Start(); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-srv.Done():
		if err != nil {
			log.Error("http server exited", zap.Error(err))
		}
	}

	log.Info("Shutting down equipment-config service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop HTTP server", zap.Error(err))
	}
	log.Info("equipment-config service stopped")
}
