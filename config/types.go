package config

import "time"

// UpstreamConfig describes one GTFS / GTFS-RT provider. URL templates may use
// the {operator}, {date}, {feed} and {key} placeholders.
type UpstreamConfig struct {
	StaticURL      string `yaml:"staticURL" validate:"required"`
	RealtimeURL    string `yaml:"realtimeURL" validate:"required"`
	TimeoutMS      int    `yaml:"timeoutMS" validate:"gt=0"`
	MaxRetries     int    `yaml:"maxRetries" validate:"gte=0"`
	PollIntervalMS int    `yaml:"pollIntervalMS" validate:"gt=0"`
	MaxPolls       int    `yaml:"maxPolls" validate:"gte=0"`

	StaticKey   string `yaml:"-"`
	RealtimeKey string `yaml:"-"`
}

// Timeout returns the per-attempt timeout as a duration.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutMS) * time.Millisecond
}

// PollInterval returns the fixed delay between 202 polls.
func (u UpstreamConfig) PollInterval() time.Duration {
	return time.Duration(u.PollIntervalMS) * time.Millisecond
}

// CacheConfig contains on-disk cache settings
type CacheConfig struct {
	Dir            string `yaml:"dir" validate:"required"`
	RemoveArchives bool   `yaml:"removeArchives"`
	MemoSize       int    `yaml:"memoSize" validate:"gte=0"`
}

// FeaturesConfig contains aggregation parameters
type FeaturesConfig struct {
	MinTripUpdatesPerSlot int `yaml:"minTripUpdatesPerSlot" validate:"gte=0"`
	LiveWindowMinutes     int `yaml:"liveWindowMinutes" validate:"gt=0"`
	BackfillWindowMinutes int `yaml:"backfillWindowMinutes" validate:"gt=0"`
	OnTimeMinSeconds      int `yaml:"onTimeMinSeconds"`
	OnTimeMaxSeconds      int `yaml:"onTimeMaxSeconds" validate:"gtefield=OnTimeMinSeconds"`
	LagStops              int `yaml:"lagStops" validate:"gt=0"`
}

// BackfillConfig contains the historical date range to process
type BackfillConfig struct {
	StartDate    string `yaml:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `yaml:"endDate" validate:"omitempty,datetime=2006-01-02"`
	StrideDays   int    `yaml:"strideDays" validate:"gt=0"`
	AbortOnFatal bool   `yaml:"abortOnFatal"`
}

// StoreConfig contains output and notification settings
type StoreConfig struct {
	DryRun      bool   `yaml:"dryRun"`
	OutputDir   string `yaml:"outputDir" validate:"required"`
	PostgresDSN string `yaml:"-"`
	NATSURL     string `yaml:"natsURL" validate:"omitempty,url"`
	NATSSubject string `yaml:"natsSubject" validate:"required"`
	LedgerPath  string `yaml:"ledgerPath"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Operator    string         `yaml:"operator" validate:"required"`
	Timezone    string         `yaml:"timezone" validate:"required"`
	Workers     int            `yaml:"workers" validate:"gte=0"`
	ForceRT     bool           `yaml:"forceRT"`
	MetricsAddr string         `yaml:"metricsAddr"`
	KoDa        UpstreamConfig `yaml:"koda" validate:"required"`
	Regional    UpstreamConfig `yaml:"regional" validate:"required"`
	Cache       CacheConfig    `yaml:"cache" validate:"required"`
	Features    FeaturesConfig `yaml:"features" validate:"required"`
	Backfill    BackfillConfig `yaml:"backfill"`
	Store       StoreConfig    `yaml:"store" validate:"required"`
}

// Location resolves Timezone; callers run Load first so the name is known valid.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
