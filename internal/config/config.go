package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "skyfire-equipment/common/config"
)

// Config 设备配置服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	RedisEnabled bool
	Redis        commoncfg.RedisConfig

	Log struct {
		Level  string
		Format string
	}

	Catalog CatalogConfig
	Notify  NotifyConfig

	// DerivationMaxPasses 派生规则不动点的最大轮数
	DerivationMaxPasses int
}

// CatalogConfig 设备目录 / 公用事业需求表 API
type CatalogConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	RetryCount int
	// RequirementsTTL 需求表缓存时间
	RequirementsTTL time.Duration
}

// NotifyConfig 变更事件发布
type NotifyConfig struct {
	MQTTEnabled bool
	MQTT        commoncfg.MQTTConfig
	Topic       string

	StreamEnabled bool
	Stream        string
	StreamMaxLen  int64
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "skyfire",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Catalog.BaseURL = getEnv("CATALOG_BASE_URL", "http://localhost:8000")
	cfg.Catalog.Timeout = time.Duration(parseInt(getEnv("CATALOG_TIMEOUT_SEC", "10"), 10)) * time.Second
	cfg.Catalog.RatePerSec = parseFloat(getEnv("CATALOG_RATE_PER_SEC", "20"), 20)
	cfg.Catalog.Burst = parseInt(getEnv("CATALOG_BURST", "5"), 5)
	cfg.Catalog.RetryCount = parseInt(getEnv("CATALOG_RETRY_COUNT", "2"), 2)
	cfg.Catalog.RequirementsTTL = time.Duration(parseInt(getEnv("UTILITY_REQ_CACHE_TTL_SEC", "600"), 600)) * time.Second

	// 事件发布默认关闭
	cfg.Notify.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.Notify.MQTT = commoncfg.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "skyfire-equipment", QoS: 1}
	cfg.Notify.MQTT.LoadFromEnv("MQTT")
	cfg.Notify.Topic = getEnv("MQTT_TOPIC", "equipment/projects/{project_id}/config")
	cfg.Notify.StreamEnabled = getEnv("NOTIFY_STREAM_ENABLED", "false") == "true"
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "equipment:config:events")
	cfg.Notify.StreamMaxLen = int64(parseInt(getEnv("NOTIFY_STREAM_MAXLEN", "10000"), 10000))

	cfg.DerivationMaxPasses = parseInt(getEnv("DERIVATION_MAX_PASSES", "8"), 8)
	return cfg
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

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
