package config

import (
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	applog "secondhand/internal/log"
)

type Config struct {
	Port          string        `envconfig:"PORT" default:"8080"`
	DBDSN         string        `envconfig:"DB_DSN" default:"secondhand.db"` // sqlite file in project root, or postgres:// URL
	MediaDir      string        `envconfig:"MEDIA_DIR" default:"./web/media"`
	MediaURL      string        `envconfig:"MEDIA_URL" default:"/media"`
	LogFile       string        `envconfig:"LOG_FILE" default:"./secondhand.log"`
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"24h"`
	CloudinaryURL string        `envconfig:"CLOUDINARY_URL"`
	RateMax       int           `envconfig:"RATE_MAX" default:"120"` // requests per minute per IP, 0 disables
	LoginRateMax  int           `envconfig:"LOGIN_RATE_MAX" default:"5"`
	Seed          bool          `envconfig:"SEED" default:"true"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	applog.Event("config.loaded", map[string]any{
		"port":       cfg.Port,
		"db_dsn":     redactDSN(cfg.DBDSN),
		"media_dir":  cfg.MediaDir,
		"log_file":   cfg.LogFile,
		"jwt_ttl":    cfg.JWTTTL.String(),
		"cloudinary": cfg.CloudinaryURL != "",
	})
	return cfg, nil
}

// Default returns the built-in defaults without touching the environment.
func Default() Config {
	return Config{
		Port:         "8080",
		DBDSN:        ":memory:",
		MediaDir:     "./web/media",
		MediaURL:     "/media",
		JWTSecret:    "dev-secret-change-me",
		JWTTTL:       24 * time.Hour,
		RateMax:      120,
		LoginRateMax: 5,
		Seed:         true,
	}
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
