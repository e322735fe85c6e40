package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "roomdesk/common/config"

	"github.com/joho/godotenv"
)

// Config roomdesk 配置（环境变量，可选 .env 文件）
type Config struct {
	HTTP struct {
		Addr string
	}
	RoomAPI commoncfg.HTTPClientConfig
	// CacheRedisEnabled 启用 Redis 二级快照，多个 roomdesk 进程共享列表缓存
	CacheRedisEnabled bool
	Redis             commoncfg.RedisConfig
	Cache             struct {
		KeyPrefix   string
		SnapshotTTL time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	MQTT struct {
		Enabled bool
		Topic   string
		commoncfg.MQTTConfig
	}
	EventsStream struct {
		Enabled bool
		Stream  string
		MaxLen  int64
	}
}

// Load reads envFile (or ./.env when empty) if present, then the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, err
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.RoomAPI = commoncfg.HTTPClientConfig{BaseURL: "http://localhost:5000/api"}
	cfg.RoomAPI.LoadFromEnv("ROOM_API")

	cfg.CacheRedisEnabled = getEnv("CACHE_REDIS_ENABLED", "false") == "true"
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "roomdesk:cache")
	cfg.Cache.SnapshotTTL = parseDuration(getEnv("CACHE_SNAPSHOT_TTL", "30s"), 30*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// MQTT 变更广播（默认禁用）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "roomdesk/rooms/events")
	cfg.MQTT.MQTTConfig = commoncfg.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "roomdesk", QoS: 1}
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")

	// Redis Streams 变更广播（默认禁用）
	cfg.EventsStream.Enabled = getEnv("EVENTS_STREAM_ENABLED", "false") == "true"
	cfg.EventsStream.Stream = getEnv("EVENTS_STREAM", "rooms:events")
	cfg.EventsStream.MaxLen = int64(parseInt(getEnv("EVENTS_STREAM_MAXLEN", "10000"), 10000))

	return cfg, nil
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.CacheRedisEnabled || c.EventsStream.Enabled
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
