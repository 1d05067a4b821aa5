package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ericfialkowski/urlshort/dao"
	"github.com/ericfialkowski/urlshort/env"
)

// ErrConfiguration marks settings that keep the server from starting.
var ErrConfiguration = errors.New("configuration error")

// MaxIdLength caps ID_LENGTH.
const MaxIdLength = 64

type Config struct {
	Token           string
	IP              string
	Port            int
	IdLength        int
	Storage         string
	Connections     dao.Connections
	StatusInterval  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogRequests     bool
}

// Load reads the configuration from the environment, after merging the optional dotenv file
// named by ENV_FILE (default ".env").
func Load() (Config, error) {
	if err := env.Load(env.StringOrDefault("ENV_FILE", ".env")); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	token, err := env.Required("TOKEN")
	if err != nil {
		return Config{}, fmt.Errorf("%w: environment variable TOKEN is missing", ErrConfiguration)
	}

	idLength, err := env.Int("ID_LENGTH", 3)
	if err != nil {
		return Config{}, fmt.Errorf("%w: environment variable ID_LENGTH is not a number", ErrConfiguration)
	}
	if idLength < 1 {
		return Config{}, fmt.Errorf("%w: environment variable ID_LENGTH must be at least 1", ErrConfiguration)
	}
	if idLength > MaxIdLength {
		return Config{}, fmt.Errorf("%w: environment variable ID_LENGTH must be at most %d", ErrConfiguration, MaxIdLength)
	}

	port, err := env.Int("PORT", 3000)
	if err != nil {
		return Config{}, fmt.Errorf("%w: environment variable PORT is not a number", ErrConfiguration)
	}

	return Config{
		Token:    token,
		IP:       env.StringOrDefault("IP", ""),
		Port:     port,
		IdLength: idLength,
		Storage:  dao.StorageName(env.StringOrDefault("STORAGE", dao.StorageMemory)),
		Connections: dao.Connections{
			RedisUrl:      env.StringOrDefault("REDIS_URL", "localhost:6379"),
			PostgresUrl:   env.StringOrDefault("POSTGRES_URL", "postgres://localhost:5432/urlshort"),
			MySQLDsn:      env.StringOrDefault("MYSQL_DSN", "root@tcp(localhost:3306)/urlshort"),
			SQLitePath:    env.StringOrDefault("SQLITE_PATH", "urlshort.db"),
			MongoUri:      env.StringOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			MemoryMaxKeys: env.IntOrDefault("MEMORY_MAX_KEYS", 0),
		},
		StatusInterval:  env.DurationOrDefault("STATUS_INTERVAL", 30*time.Second),
		ShutdownTimeout: env.DurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        env.StringOrDefault("LOG_LEVEL", "info"),
		LogRequests:     env.BoolOrDefault("LOG_REQUESTS", true),
	}, nil
}

// BindAddr is the listen address for the HTTP server.
func (c Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.IP, c.Port)
}
