package shared

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"storefinder/internal/domain"
)

type Config struct {
	AppEnv      string        `mapstructure:"app_env"`
	LogLevel    string        `mapstructure:"log_level"`
	HTTPAddr    string        `mapstructure:"http_addr"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	MySQLDSN    string        `mapstructure:"mysql_dsn"`

	CacheBackend    string        `mapstructure:"cache_backend"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPass       string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	ValkeyAddr      string        `mapstructure:"valkey_addr"`
	CacheLongTTL    time.Duration `mapstructure:"cache_long_ttl"`
	CacheShortTTL   time.Duration `mapstructure:"cache_short_ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`

	PlacesProvider string `mapstructure:"places_provider"`
	PlacesBaseURL  string `mapstructure:"places_base_url"`
	PlacesKey      string `mapstructure:"google_maps_api_key"`
	PlacesRPS      int    `mapstructure:"places_rps"`
	ElasticURL     string `mapstructure:"elastic_url"`
	ElasticIndex   string `mapstructure:"elastic_index"`
	CatalogFile    string `mapstructure:"catalog_file"`

	SearchWorkers int           `mapstructure:"search_workers"`
	TermInterval  time.Duration `mapstructure:"term_interval"`
	TierPause     time.Duration `mapstructure:"tier_pause"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`

	WarmPoints  string `mapstructure:"warm_points"`
	WarmWorkers int    `mapstructure:"warm_workers"`
}

var defaults = map[string]any{
	"app_env":      "prod",
	"log_level":    "info",
	"http_addr":    ":8080",
	"http_timeout": "35s",
	"metrics_addr": "",
	"mysql_dsn":    "",

	"cache_backend":    "redis",
	"redis_addr":       "localhost:6379",
	"redis_password":   "",
	"redis_db":         0,
	"valkey_addr":      "localhost:6379",
	"cache_long_ttl":   "1800s",
	"cache_short_ttl":  "300s",
	"janitor_interval": "6h",

	"places_provider":     "google",
	"places_base_url":     "",
	"google_maps_api_key": "",
	"places_rps":          10,
	"elastic_url":         "http://localhost:9200",
	"elastic_index":       "stores",
	"catalog_file":        "",

	"search_workers": 4,
	"term_interval":  "100ms",
	"tier_pause":     "200ms",
	"search_timeout": "30s",

	// downtown Boston and the Medford Target
	"warm_points":  "42.3601,-71.0589;42.4184,-71.1062",
	"warm_workers": 2,
}

// Load reads an optional config.yaml, then environment variables named after the keys
// in upper case (HTTP_ADDR, CACHE_BACKEND, GOOGLE_MAPS_API_KEY, ...).
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	c.PlacesProvider = strings.ToLower(strings.TrimSpace(c.PlacesProvider))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	if c.PlacesProvider == "google" && c.PlacesKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is empty; searches will report degraded")
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []string
	switch c.CacheBackend {
	case "redis", "valkey", "memory":
	default:
		errs = append(errs, fmt.Sprintf("cache_backend must be redis, valkey or memory, got %q", c.CacheBackend))
	}
	switch c.PlacesProvider {
	case "google", "elastic", "none":
	default:
		errs = append(errs, fmt.Sprintf("places_provider must be google, elastic or none, got %q", c.PlacesProvider))
	}
	if c.SearchWorkers < 1 {
		errs = append(errs, "search_workers must be >= 1")
	}
	if c.CacheLongTTL <= 0 || c.CacheShortTTL <= 0 {
		errs = append(errs, "cache TTLs must be positive")
	}
	if _, err := c.WarmLocations(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WarmLocations parses WarmPoints ("lat,lng;lat,lng").
func (c Config) WarmLocations() ([]domain.Coords, error) {
	var out []domain.Coords
	for _, part := range strings.Split(c.WarmPoints, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lat, lng, ok := strings.Cut(part, ",")
		if !ok {
			return nil, fmt.Errorf("warm_points: %q is not lat,lng", part)
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("warm_points: %q is not numeric", part)
		}
		out = append(out, domain.Coords{Lat: la, Lng: ln})
	}
	return out, nil
}
