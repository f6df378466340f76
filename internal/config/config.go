package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret         string
		SessionTTLMinutes int
		CookieSecure      bool
	}
	Cache struct {
		Addr       string
		Password   string
		TTLSeconds int
	}
	Storage struct {
		Bucket         string
		KeyPrefix      string
		Region         string
		Endpoint       string
		PresignMinutes int
	}
	AWS struct {
		Profile string
	}
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c Config) PresignTTL() time.Duration {
	return time.Duration(c.Storage.PresignMinutes) * time.Minute
}

// Load reads configuration from environment variables and optional config files.
// Values in .env never override variables already set in the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ROCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/rocket.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.sessionttlminutes", 60*24)
	v.SetDefault("auth.cookiesecure", false)
	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.ttlseconds", 60)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "profile-images")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.presignminutes", 15)
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
