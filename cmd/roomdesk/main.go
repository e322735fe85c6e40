package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomdesk/common/logger"
	"roomdesk/common/mqtt"
	commonredis "roomdesk/common/redis"
	"roomdesk/internal/config"
	"roomdesk/internal/events"
	httpapi "roomdesk/internal/http"
	"roomdesk/internal/querycache"
	"roomdesk/internal/roomapi"
	"roomdesk/internal/service"
	"roomdesk/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", "", "path to an env file (default: ./.env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "roomdesk")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// instanceID 标识本进程发出的事件，远端事件才触发本地失效
	instanceID := uuid.NewString()

	var redisClient *commonredis.Client
	if cfg.NeedsRedis() {
		redisClient = commonredis.NewRedisClient(&cfg.Redis)
		if err := commonredis.Ping(ctx, redisClient); err != nil {
			lg.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	api := roomapi.NewClient(cfg.RoomAPI, lg)

	var kv store.KV
	if cfg.CacheRedisEnabled {
		kv = store.NewRedisKV(redisClient)
	}
	cache := querycache.New(api, kv, querycache.Config{
		KeyPrefix:   cfg.Cache.KeyPrefix,
		SnapshotTTL: cfg.Cache.SnapshotTTL,
	}, lg)

	hub := httpapi.NewHub(lg)
	go hub.Run(ctx)
	detach := hub.Attach(cache)
	defer detach()

	page := service.NewRoomsPage(api, cache, lg, hub)

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mcfg := cfg.MQTT.MQTTConfig
		mcfg.ClientID = mcfg.ClientID + "-" + instanceID[:8]
		mqttClient, err = mqtt.NewClient(&mcfg, lg)
		if err != nil {
			lg.Fatal("Failed to connect to MQTT broker", zap.String("broker", mcfg.Broker), zap.Error(err))
		}
		page.AddListener(events.NewMQTTPublisher(mqttClient, cfg.MQTT.Topic, instanceID, lg))
		if err := events.SubscribeInvalidations(mqttClient, cfg.MQTT.Topic, instanceID, cache, lg); err != nil {
			lg.Fatal("Failed to subscribe to room events", zap.Error(err))
		}
		lg.Info("MQTT room events enabled", zap.String("topic", cfg.MQTT.Topic))
	}

	if cfg.EventsStream.Enabled {
		page.AddListener(events.NewStreamPublisher(redisClient, cfg.EventsStream.Stream, cfg.EventsStream.MaxLen, instanceID, lg))
		consumer := events.NewStreamConsumer(redisClient, cache, cfg.EventsStream.Stream, instanceID, lg)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				lg.Error("Room event consumer stopped", zap.Error(err))
			}
		}()
	}

	health := httpapi.NewHealthHandler(cache, hub)
	if mqttClient != nil {
		health.AddCheck("mqtt", mqttClient.IsConnected)
	}

	router := httpapi.NewRouter(lg)
	router.RegisterHealthRoutes(health)
	router.RegisterRoomRoutes(httpapi.NewRoomsHandler(page, lg))
	router.RegisterLiveRoutes(hub)

	srv := service.NewServer(cfg.HTTP.Addr, router, lg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	lg.Info("roomdesk started",
		zap.String("instance_id", instanceID),
		zap.String("room_api", cfg.RoomAPI.BaseURL),
		zap.Bool("redis_snapshots", cfg.CacheRedisEnabled),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			lg.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = commonredis.Close(redisClient)
}
