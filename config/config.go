package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Mongo struct {
	URI      string
	Database string
}

type Push struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

type Config struct {
	Port               string
	GinMode            string
	LogLevel           string
	StoreDriver        string
	Mongo              Mongo
	JWTSecret          string
	TokenTTL           time.Duration
	CORSOrigins        []string
	RateLimitPerMinute int
	CloudinaryURL      string
	Push               Push
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoreDriver: getEnv("STORE_DRIVER", StoreMongo),
		Mongo: Mongo{
			URI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
			Database: getEnv("MONGODB_DATABASE", "offerland"),
		},
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		CloudinaryURL:      os.Getenv("CLOUDINARY_URL"),
		Push: Push{
			PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subscriber: getEnv("VAPID_SUBSCRIBER", "admin@offerland.local"),
		},
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.StoreDriver != StoreMongo && c.StoreDriver != StoreMemory {
		errs = append(errs, errors.New("STORE_DRIVER must be mongo or memory"))
	}
	if c.StoreDriver == StoreMongo && c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGODB_URI must be set"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Release() bool {
	return c.GinMode == "release"
}

func (c *Config) PushEnabled() bool {
	return c.Push.PublicKey != "" && c.Push.PrivateKey != ""
}
