package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Upstream names accepted by RequireCredentials.
const (
	UpstreamKoDa     = "koda"
	UpstreamRegional = "regional"
)

var defaultPaths = []string{"config.yml", "./config/config.yml"}

// Default returns the configuration used when no file or environment overrides exist.
func Default() AppConfig {
	return AppConfig{
		Operator: "otraf",
		Timezone: "Europe/Stockholm",
		ForceRT:  true,
		KoDa: UpstreamConfig{
			StaticURL:      "https://api.koda.trafiklab.se/KoDa/api/v2/gtfs-static/{operator}?date={date}&key={key}",
			RealtimeURL:    "https://api.koda.trafiklab.se/KoDa/api/v2/gtfs-rt/{operator}/{feed}?date={date}&key={key}",
			TimeoutMS:      20000,
			MaxRetries:     5,
			PollIntervalMS: 60000,
			MaxPolls:       20,
		},
		Regional: UpstreamConfig{
			StaticURL:      "https://opendata.samtrafiken.se/gtfs/{operator}/{operator}.zip?key={key}",
			RealtimeURL:    "https://opendata.samtrafiken.se/gtfs-rt/{operator}/{feed}.pb?key={key}",
			TimeoutMS:      20000,
			MaxRetries:     5,
			PollIntervalMS: 60000,
			MaxPolls:       20,
		},
		Cache: CacheConfig{
			Dir:      "dev_data",
			MemoSize: 16,
		},
		Features: FeaturesConfig{
			MinTripUpdatesPerSlot: 1,
			LiveWindowMinutes:     20,
			BackfillWindowMinutes: 180,
			OnTimeMinSeconds:      -180,
			OnTimeMaxSeconds:      300,
			LagStops:              5,
		},
		Backfill: BackfillConfig{StrideDays: 1},
		Store: StoreConfig{
			OutputDir:   "dev_data/features",
			NATSSubject: "delays.features",
			LedgerPath:  "dev_data/ledger.db",
		},
	}
}

// Load reads config.yml (path, or the default search paths when path is
// empty), applies environment overrides and validates the result. A missing
// file is only an error when path was given explicitly.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers()
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %v", err)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// DefaultWorkers leaves two cores for the orchestrator and the OS.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-2, 1)
}

// RequireCredentials fails fast when the named upstream lacks an API key.
func (c *AppConfig) RequireCredentials(upstream string) error {
	switch upstream {
	case UpstreamKoDa:
		if c.KoDa.StaticKey == "" {
			return &MissingCredentialError{Name: "KODA_API_KEY"}
		}
	case UpstreamRegional:
		if c.Regional.StaticKey == "" {
			return &MissingCredentialError{Name: "GTFS_REGIONAL_STATIC_KEY"}
		}
		if c.Regional.RealtimeKey == "" {
			return &MissingCredentialError{Name: "GTFS_REGIONAL_RT_KEY"}
		}
	default:
		return fmt.Errorf("unknown upstream %q", upstream)
	}
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return data, nil
	}
	for _, p := range defaultPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return nil, nil
}

func applyEnv(cfg *AppConfig) error {
	koda := os.Getenv("KODA_API_KEY")
	cfg.KoDa.StaticKey = koda
	cfg.KoDa.RealtimeKey = koda
	cfg.Regional.StaticKey = os.Getenv("GTFS_REGIONAL_STATIC_KEY")
	cfg.Regional.RealtimeKey = os.Getenv("GTFS_REGIONAL_RT_KEY")
	cfg.Store.PostgresDSN = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))

	cfg.Operator = getenvDefault("OPERATOR", cfg.Operator)
	cfg.Timezone = getenvDefault("TIMEZONE", cfg.Timezone)
	cfg.MetricsAddr = getenvDefault("METRICS_ADDR", cfg.MetricsAddr)
	cfg.Cache.Dir = getenvDefault("CACHE_DIR", cfg.Cache.Dir)
	cfg.Store.OutputDir = getenvDefault("OUTPUT_DIR", cfg.Store.OutputDir)
	cfg.Store.NATSURL = getenvDefault("NATS_URL", cfg.Store.NATSURL)
	cfg.Store.LedgerPath = getenvDefault("LEDGER_PATH", cfg.Store.LedgerPath)
	cfg.Backfill.StartDate = getenvDefault("START_DATE", cfg.Backfill.StartDate)
	cfg.Backfill.EndDate = getenvDefault("END_DATE", cfg.Backfill.EndDate)

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"USE_PROCESSES", &cfg.Workers, 1},
		{"MIN_TRIP_UPDATES_PER_SLOT", &cfg.Features.MinTripUpdatesPerSlot, 0},
		{"LIVE_WINDOW_MINUTES", &cfg.Features.LiveWindowMinutes, 1},
		{"BACKFILL_WINDOW_MINUTES", &cfg.Features.BackfillWindowMinutes, 1},
		{"STRIDE_DAYS", &cfg.Backfill.StrideDays, 1},
	}
	for _, it := range ints {
		v := os.Getenv(it.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < it.min {
			return fmt.Errorf("invalid %s: %q", it.name, v)
		}
		*it.dst = n
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"FORCE_RT", &cfg.ForceRT},
		{"DRY_RUN", &cfg.Store.DryRun},
		{"REMOVE_ARCHIVES", &cfg.Cache.RemoveArchives},
		{"ABORT_ON_FATAL", &cfg.Backfill.AbortOnFatal},
	}
	for _, it := range bools {
		v := os.Getenv(it.name)
		if v == "" {
			continue
		}
		b, ok := parseBool(v)
		if !ok {
			return fmt.Errorf("invalid %s: %q", it.name, v)
		}
		*it.dst = b
	}
	return nil
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, true
	case "0", "false", "f", "no", "n", "off":
		return false, true
	}
	return false, false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
