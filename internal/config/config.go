package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Load wires viper to the .env file and environment, binds the well-known
// keys and installs defaults. Call once at process start; the rest of the
// code reads settings through viper.
func Load() {
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("app.env", "APP_ENV")
	viper.BindEnv("app.port", "PORT")

	viper.BindEnv("mongodb.uri", "MONGODB_URI")
	viper.BindEnv("mongodb.name", "MONGODB_DB_NAME")
	viper.BindEnv("mongodb.connect_timeout", "MONGODB_CONNECT_TIMEOUT")
	viper.BindEnv("mongodb.txn_timeout", "MONGODB_TXN_TIMEOUT")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.topic", "KAFKA_TOPIC")

	viper.BindEnv("metrics.port", "METRICS_PORT")

	viper.BindEnv("platform.currency", "PLATFORM_CURRENCY")
	viper.BindEnv("withdrawal.minimum", "WITHDRAWAL_MINIMUM")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("app.env", "local")
	viper.SetDefault("app.port", "8080")

	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.name", "gaming_platform")
	viper.SetDefault("mongodb.connect_timeout", 10*time.Second)
	viper.SetDefault("mongodb.txn_timeout", 15*time.Second)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("jwt.expiry_hours", 168) // 7 days
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("kafka.brokers", "")
	viper.SetDefault("kafka.topic", "ledger_events")

	viper.SetDefault("metrics.port", "9100")

	viper.SetDefault("platform.currency", "USD")
	viper.SetDefault("withdrawal.minimum", 10.0)
}
